package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/digestmail/digestmail/internal/auth"
)

// SubjectKey holds the authenticated token subject
const SubjectKey contextKey = "subject"

// Auth validates bearer tokens. When token auth is disabled every request passes.
func (m *Middleware) Auth(tokenSvc *auth.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !tokenSvc.Enabled() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var tokenString string

			authHeader := r.Header.Get("Authorization")
			if authHeader != "" {
				parts := strings.SplitN(authHeader, " ", 2)
				if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
					tokenString = parts[1]
				}
			}

			if tokenString == "" {
				if cookie, err := r.Cookie("digestmail_token"); err == nil && cookie.Value != "" {
					tokenString = cookie.Value
				}
			}

			if tokenString == "" {
				http.Error(w, `{"error":{"code":"unauthorized","message":"Authentication required"}}`, http.StatusUnauthorized)
				return
			}

			claims, err := tokenSvc.Validate(tokenString)
			if err != nil {
				m.log.Debug().Err(err).Msg("token validation failed")
				http.Error(w, `{"error":{"code":"token_invalid","message":"The token is invalid or expired"}}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), SubjectKey, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
