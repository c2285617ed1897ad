package middleware

import (
	"log"
	"net/http"
	"runtime/debug"

	"github.com/mnemos/mnemos/internal/adapters/http/dto"
)

// Recovery converts panics into a 500 envelope instead of killing the
// connection.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("panic recovered: %v\n%s", rec, debug.Stack())
				dto.Error(w, "服务器内部错误", "INTERNAL_ERROR", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
