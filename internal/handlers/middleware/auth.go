package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/classtrackapp/classtrack/internal/handlers/render"
	"github.com/classtrackapp/classtrack/internal/handlers/userctx"
	"github.com/classtrackapp/classtrack/internal/models"
)

type accountService interface {
	UserFromToken(ctx context.Context, token string) (models.User, error)
}

// AuthMiddleware resolves the Bearer session token into a user and stores
// it in the request context
func AuthMiddleware(accounts accountService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				render.ServiceError(w, "Authorization required", http.StatusUnauthorized)
				return
			}

			user, err := accounts.UserFromToken(r.Context(), token)
			if err != nil {
				render.ServiceError(w, "Invalid or expired session", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(userctx.WithUser(r.Context(), user)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		return "", false
	}
	return token, true
}
