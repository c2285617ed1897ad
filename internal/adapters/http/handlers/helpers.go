package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/mnemos/mnemos/internal/adapters/http/dto"
)

// decodeJSON decodes a JSON request body with a 1MB size limit.
func decodeJSON[T any](r *http.Request, w http.ResponseWriter) (*T, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, 1024*1024)

	var req T
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		dto.Error(w, "请求数据格式错误", "VALIDATION_ERROR", http.StatusBadRequest)
		return nil, false
	}
	return &req, true
}

// parseIntQuery parses an integer query parameter with a default value
func parseIntQuery(r *http.Request, name string, defaultValue int) int {
	value := r.URL.Query().Get(name)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intValue
}

// urlParam returns a URL parameter, writing a validation error when empty.
func urlParam(r *http.Request, w http.ResponseWriter, name string) (string, bool) {
	value := chi.URLParam(r, name)
	if value == "" {
		dto.Error(w, name+" 不能为空", "VALIDATION_ERROR", http.StatusBadRequest)
		return "", false
	}
	return value, true
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
