package server

import (
	"log"
	"net/http"
	"time"

	"ec2manager/internal/database"
	"ec2manager/internal/system"
)

// SystemVitalsResponse represents a vitals sample on the wire.
type SystemVitalsResponse struct {
	Timestamp        time.Time `json:"timestamp"`
	CPUPercent       float64   `json:"cpu_percent"`
	MemoryPercent    float64   `json:"memory_percent"`
	DiskUsagePercent float64   `json:"disk_usage_percent"`
}

// handleSystemVitals handles GET /api/system-vitals
func (s *Server) handleSystemVitals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	vitals, err := system.GetVitals()
	if err != nil {
		log.Printf("Failed to get system vitals: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "Failed to get system vitals")
		return
	}

	writeJSON(w, http.StatusOK, SystemVitalsResponse{
		Timestamp:        time.Now().UTC(),
		CPUPercent:       vitals.CPUPercent,
		MemoryPercent:    vitals.MemPercent,
		DiskUsagePercent: vitals.DiskPercent,
	})
}

// handleVitalsHistory handles GET /api/system-vitals/history
func (s *Server) handleVitalsHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	endTime := time.Now().UTC()
	startTime := endTime.Add(-24 * time.Hour)

	switch r.URL.Query().Get("range") {
	case "1h":
		startTime = endTime.Add(-1 * time.Hour)
	case "6h":
		startTime = endTime.Add(-6 * time.Hour)
	case "12h":
		startTime = endTime.Add(-12 * time.Hour)
	case "24h", "":
		startTime = endTime.Add(-24 * time.Hour)
	case "7d":
		startTime = endTime.Add(-7 * 24 * time.Hour)
	default:
		writeJSONError(w, http.StatusBadRequest, "Invalid range (use 1h, 6h, 12h, 24h or 7d)")
		return
	}

	// No database means no samples were ever recorded.
	if s.db == nil {
		writeJSON(w, http.StatusOK, []SystemVitalsResponse{})
		return
	}

	metrics, err := database.GetVitalsForTimeRange(s.db, startTime, endTime)
	if err != nil {
		log.Printf("Failed to get vitals history: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "Failed to get vitals history")
		return
	}

	response := make([]SystemVitalsResponse, 0, len(metrics))
	for _, m := range metrics {
		response = append(response, SystemVitalsResponse{
			Timestamp:        m.Timestamp,
			CPUPercent:       m.CPUPercent,
			MemoryPercent:    m.MemoryPercent,
			DiskUsagePercent: m.DiskUsagePercent,
		})
	}

	writeJSON(w, http.StatusOK, response)
}
