package server

import (
	"net/http"
)

// AuthRequiredMiddleware guards mutating endpoints. With no admin password
// configured the service runs open, matching a single-user deployment
// behind a trusted network.
func (s *Server) AuthRequiredMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.config.AdminPasswordHash == "" {
			next(w, r)
			return
		}

		session, err := s.sessionStore.Get(r, sessionName)
		if err != nil {
			writeJSONError(w, http.StatusUnauthorized, "Authentication required")
			return
		}

		authenticated, ok := session.Values["authenticated"].(bool)
		if !ok || !authenticated {
			writeJSONError(w, http.StatusUnauthorized, "Authentication required")
			return
		}

		next(w, r)
	}
}

// RateLimitMiddleware rejects bursts beyond the shared limiter's budget.
func (s *Server) RateLimitMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			writeJSONError(w, http.StatusTooManyRequests, "Too many requests")
			return
		}
		next(w, r)
	}
}
