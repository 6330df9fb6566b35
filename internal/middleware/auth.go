package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/hubdesk-platform/api/internal/auth"
)

// RequireToken guards a route group with a static bearer token. Tokens
// are compared as sha256 digests in constant time. An empty configured
// token disables the check (local dev).
func RequireToken(token string) func(http.Handler) http.Handler {
	expected := auth.HashToken(token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			header := strings.TrimSpace(r.Header.Get("Authorization"))
			presented, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || presented == "" {
				writeError(w, r, http.StatusUnauthorized, "unauthorized", "Authentication required", nil)
				return
			}
			digest := auth.HashToken(strings.TrimSpace(presented))
			if subtle.ConstantTimeCompare([]byte(digest), []byte(expected)) != 1 {
				writeError(w, r, http.StatusUnauthorized, "unauthorized", "Invalid token", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
