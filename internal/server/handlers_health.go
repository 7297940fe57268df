package server

import (
	"net/http"
)

// HealthResponse represents the health check status
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Service: "ec2manager",
		Version: s.versionInfo.Version,
	})
}
