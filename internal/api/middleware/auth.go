package middleware

import (
	"net/http"
	"strings"

	"snapbot/pkg/crypto"
)

// AdminAuth - middleware для служебных endpoints (/metrics, /ws/events, /api/v1/status).
//
// Токен передается заголовком Authorization: Bearer <token> или параметром ?token=
// (браузерный WebSocket не умеет ставить заголовки). ADMIN_TOKEN может быть
// открытым значением или bcrypt хешем. Пустой ADMIN_TOKEN закрывает endpoints полностью.
func AdminAuth(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if expected == "" {
				http.Error(w, "Admin endpoints disabled. Set ADMIN_TOKEN.", http.StatusForbidden)
				return
			}

			if err := crypto.VerifyToken(presentedToken(r), expected); err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="snapbot"`)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func presentedToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("token")
}
