package delivery

import (
	"net/http"
	"strings"

	"github.com/Vovarama1992/featured-media/internal/ports"
)

// isPublic lists routes reachable without X-Auth. sysinfo is gated by its
// own opt-in key.
func isPublic(path string) bool {
	switch path {
	case "/api/login", "/health", "/metrics":
		return true
	}
	if strings.HasPrefix(path, "/api/jsonld/") || strings.HasPrefix(path, "/uploads/") {
		return true
	}
	return strings.HasPrefix(path, "/api/support/") && strings.HasSuffix(path, "/sysinfo")
}

func AuthMiddleware(auth ports.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions || isPublic(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			token := r.Header.Get("X-Auth")
			// browsers cannot set headers on a websocket handshake
			if token == "" && r.URL.Path == "/ws" {
				token = r.URL.Query().Get("token")
			}
			if token == "" {
				http.Error(w, "missing token", http.StatusUnauthorized)
				return
			}

			ok, _ := auth.ValidateToken(r.Context(), token)
			if !ok {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
