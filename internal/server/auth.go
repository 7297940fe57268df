package server

import (
	"log"
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

// LoginRequest is the body of a login call.
type LoginRequest struct {
	Password string `json:"password"`
}

// checkPassword checks if password matches the configured bcrypt hash
func checkPassword(password, hash string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// handleLogin handles POST /api/login
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if s.config.AdminPasswordHash == "" {
		writeJSONError(w, http.StatusBadRequest, "Authentication is not enabled")
		return
	}

	var req LoginRequest
	if err := decodeBody(r, &req); err != nil || req.Password == "" {
		writeJSONError(w, http.StatusBadRequest, "Password is required")
		return
	}

	if err := checkPassword(req.Password, s.config.AdminPasswordHash); err != nil {
		writeJSONError(w, http.StatusUnauthorized, "Invalid password")
		return
	}

	session, err := s.sessionStore.Get(r, sessionName)
	if err != nil {
		// A stale cookie signed with an old key still yields a fresh session
		log.Printf("Failed to decode existing session: %v", err)
	}
	session.Values["authenticated"] = true
	if err := session.Save(r, w); err != nil {
		log.Printf("Failed to save session: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// handleLogout handles POST /api/logout
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	session, _ := s.sessionStore.Get(r, sessionName)
	delete(session.Values, "authenticated")
	session.Options.MaxAge = -1
	if err := session.Save(r, w); err != nil {
		log.Printf("Failed to clear session: %v", err)
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}
