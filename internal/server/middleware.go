package server

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
)

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return ""
	}
	return strings.TrimSpace(auth[len(prefix):])
}

func constantTimeEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// authMiddleware validates the Bearer token with a constant-time compare.
// The expected key never appears in logs or responses.
func authMiddleware(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !constantTimeEqual(bearerToken(r), apiKey) {
				slog.Warn("auth failure",
					"path", r.URL.Path,
					"method", r.Method,
					"remote_ip", r.RemoteAddr,
				)
				writeProblem(w, r, http.StatusUnauthorized, "Missing or invalid API key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// emailDomainMiddleware gates requests on the caller's email domain, taken
// from the X-User-Email header. An empty domain list disables the gate.
func emailDomainMiddleware(domains []string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(domains))
	for _, d := range domains {
		allowed[strings.ToLower(strings.TrimSpace(d))] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(allowed) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			email := strings.ToLower(strings.TrimSpace(r.Header.Get("X-User-Email")))
			_, domain, found := strings.Cut(email, "@")
			if !found || !allowed[domain] {
				writeProblem(w, r, http.StatusForbidden, "Email domain is not allowed")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
