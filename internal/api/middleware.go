package api

import (
	"net/http"

	"github.com/channelfinder/channelfinder-server/internal/auth"
	"github.com/channelfinder/channelfinder-server/internal/http/response"
)

// authenticate resolves HTTP Basic credentials into a request-scoped user.
// Requests without credentials stay anonymous; the engine rejects anonymous
// mutations itself. Presented credentials must verify.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name, password, ok := r.BasicAuth()
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		user, ok := s.users.Authenticate(name, password)
		if !ok {
			s.logger.Warn("Rejected credentials", "user", name, "path", r.URL.Path)
			response.Unauthorized(w, "invalid credentials", s.logger)
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithUser(r.Context(), user)))
	})
}

// rateLimit rejects mutation bursts per client with 429.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter == nil {
			next.ServeHTTP(w, r)
			return
		}

		// RealIP middleware already folded forwarding headers into RemoteAddr.
		key := stripPort(r.RemoteAddr)
		if !s.limiter.Allow(key) {
			s.logger.Warn("Rate limit exceeded", "ip", key, "path", r.URL.Path)
			response.TooManyRequests(w, s.logger)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// stripPort drops the :port suffix from a remote address.
func stripPort(addr string) string {
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			return addr[:i]
		}
	}
	return addr
}
