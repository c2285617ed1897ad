package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/mnemos/mnemos/internal/adapters/http/dto"
)

type contextKey string

const UserIDContextKey contextKey = "user_id"

// TokenVerifier turns a bearer token into a user id.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// Auth rejects requests without a valid bearer token and stores the user
// id in the request context.
func Auth(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				dto.Error(w, "缺少认证令牌", "UNAUTHORIZED", http.StatusUnauthorized)
				return
			}

			token := strings.TrimPrefix(header, "Bearer ")
			if token == header || strings.TrimSpace(token) == "" {
				dto.Error(w, "认证令牌格式错误", "TOKEN_INVALID", http.StatusUnauthorized)
				return
			}

			userID, err := verifier.Verify(strings.TrimSpace(token))
			if err != nil {
				dto.Error(w, "认证令牌无效或已过期", "TOKEN_INVALID", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), UserIDContextKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetUserID(ctx context.Context) string {
	userID, ok := ctx.Value(UserIDContextKey).(string)
	if !ok {
		return ""
	}
	return userID
}
