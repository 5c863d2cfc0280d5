package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/edvin/domains/internal/api/response"
)

// BearerAuth returns a middleware that requires Authorization: Bearer <token>.
// The API is called service-to-service; tenant authentication happens
// upstream.
func BearerAuth(token string) func(http.Handler) http.Handler {
	expected := []byte(token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := extractBearer(r)
			if got == "" {
				response.WriteError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}
			if len(expected) == 0 || subtle.ConstantTimeCompare([]byte(got), expected) != 1 {
				response.WriteError(w, http.StatusUnauthorized, "invalid bearer token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func extractBearer(r *http.Request) string {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}
