package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"ec2manager/internal/database"
	"ec2manager/internal/fleet"
)

// StartRequest is the body of a start call.
type StartRequest struct {
	Hours int `json:"hours"`
}

// InstanceListResponse wraps the instance list.
type InstanceListResponse struct {
	Instances []fleet.InstanceStatus `json:"instances"`
}

// ActionResponse is returned by successful start/stop calls.
type ActionResponse struct {
	Status        string `json:"status"`
	Message       string `json:"message"`
	InstanceID    string `json:"instance_id"`
	OverrideUntil string `json:"override_until,omitempty"`
	OperationID   string `json:"operation_id,omitempty"`
}

// handleListInstances handles GET /api/instances
func (s *Server) handleListInstances(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	writeJSON(w, http.StatusOK, InstanceListResponse{
		Instances: s.fleet.List(r.Context()),
	})
}

// routeInstanceActions routes POST /api/instances/{id}/start and
// POST /api/instances/{id}/stop.
func (s *Server) routeInstanceActions(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/instances/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}

	instanceID, action := parts[0], parts[1]

	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	switch action {
	case "start":
		s.handleInstanceStart(w, r, instanceID)
	case "stop":
		s.handleInstanceStop(w, r, instanceID)
	default:
		http.NotFound(w, r)
	}
}

// handleInstanceStart starts an instance and sets a scheduler-override tag.
func (s *Server) handleInstanceStart(w http.ResponseWriter, r *http.Request, instanceID string) {
	if _, ok := s.config.InstanceByID(instanceID); !ok {
		writeJSONError(w, http.StatusForbidden, fmt.Sprintf("Instance %s is not in the allowed list", instanceID))
		return
	}

	req := StartRequest{Hours: fleet.DefaultOverrideHours}
	if err := decodeBody(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Hours < fleet.MinOverrideHours || req.Hours > fleet.MaxOverrideHours {
		writeJSONError(w, http.StatusBadRequest,
			fmt.Sprintf("Override hours must be between %d and %d", fleet.MinOverrideHours, fleet.MaxOverrideHours))
		return
	}

	operationID := s.recordOperation(database.OpTypeStart, instanceID)

	overrideUntil, err := s.fleet.Start(r.Context(), instanceID, req.Hours)
	if err != nil {
		log.Printf("Failed to start instance %s: %v", instanceID, err)
		s.failOperation(operationID, "start failed")
		// Don't expose raw AWS error details to clients
		writeJSONError(w, http.StatusInternalServerError, "Failed to start instance. Check server logs.")
		return
	}

	message := fmt.Sprintf("Started %s with %dh override (until %s UTC)", instanceID, req.Hours, overrideUntil)
	s.completeOperation(operationID, message, overrideUntil)

	writeJSON(w, http.StatusOK, ActionResponse{
		Status:        "success",
		Message:       message,
		InstanceID:    instanceID,
		OverrideUntil: overrideUntil,
		OperationID:   operationID,
	})
}

// handleInstanceStop stops an instance and removes the scheduler-override tag.
func (s *Server) handleInstanceStop(w http.ResponseWriter, r *http.Request, instanceID string) {
	if _, ok := s.config.InstanceByID(instanceID); !ok {
		writeJSONError(w, http.StatusForbidden, fmt.Sprintf("Instance %s is not in the allowed list", instanceID))
		return
	}

	operationID := s.recordOperation(database.OpTypeStop, instanceID)

	if err := s.fleet.Stop(r.Context(), instanceID); err != nil {
		log.Printf("Failed to stop instance %s: %v", instanceID, err)
		s.failOperation(operationID, "stop failed")
		writeJSONError(w, http.StatusInternalServerError, "Failed to stop instance. Check server logs.")
		return
	}

	message := fmt.Sprintf("Stopped %s and removed override tag", instanceID)
	s.completeOperation(operationID, message, "")

	writeJSON(w, http.StatusOK, ActionResponse{
		Status:      "success",
		Message:     message,
		InstanceID:  instanceID,
		OperationID: operationID,
	})
}

// recordOperation writes a pending audit row. Audit failures never block the
// actual instance operation.
func (s *Server) recordOperation(opType, instanceID string) string {
	if s.db == nil {
		return ""
	}
	operationID, err := database.CreateOperation(s.db, opType, instanceID)
	if err != nil {
		log.Printf("Failed to record %s operation for %s: %v", opType, instanceID, err)
		return ""
	}
	return operationID
}

func (s *Server) completeOperation(operationID, message, overrideUntil string) {
	if operationID == "" {
		return
	}
	if err := database.CompleteOperation(s.db, operationID, message, overrideUntil); err != nil {
		log.Printf("Failed to update operation %s: %v", operationID, err)
	}
}

func (s *Server) failOperation(operationID, message string) {
	if operationID == "" {
		return
	}
	if err := database.FailOperation(s.db, operationID, message); err != nil {
		log.Printf("Failed to update operation %s: %v", operationID, err)
	}
}

// decodeBody decodes a JSON request body. An empty body leaves the target
// untouched so field defaults survive.
func decodeBody(r *http.Request, v interface{}) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

// writeJSONError writes an error body of the form {"detail": "..."}.
func writeJSONError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
