// Package dto defines the JSON envelope shared by every API response.
package dto

import (
	"encoding/json"
	"net/http"
	"time"
)

// Response is the envelope for all API responses. Timestamps are UTC with
// a Z suffix.
type Response struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Data      any    `json:"data,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
	Timestamp string `json:"timestamp"`
}

func now() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000000") + "Z"
}

func Success(w http.ResponseWriter, data any, message string) {
	if message == "" {
		message = "操作成功"
	}
	write(w, http.StatusOK, Response{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: now(),
	})
}

func Error(w http.ResponseWriter, message, errorCode string, status int) {
	write(w, status, Response{
		Success:   false,
		Message:   message,
		ErrorCode: errorCode,
		Timestamp: now(),
	})
}

func write(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}
