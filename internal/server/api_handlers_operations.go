package server

import (
	"database/sql"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ec2manager/internal/database"
)

// OperationResponse is the JSON view of an audit row.
type OperationResponse struct {
	ID            string     `json:"id"`
	OperationType string     `json:"operation_type"`
	InstanceID    string     `json:"instance_id"`
	Status        string     `json:"status"`
	Message       string     `json:"message,omitempty"`
	OverrideUntil string     `json:"override_until,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

func operationResponse(op database.InstanceOperation) OperationResponse {
	resp := OperationResponse{
		ID:            op.ID,
		OperationType: op.OperationType,
		InstanceID:    op.InstanceID,
		Status:        op.Status,
		CreatedAt:     op.CreatedAt,
	}
	if op.Message.Valid {
		resp.Message = op.Message.String
	}
	if op.OverrideUntil.Valid {
		resp.OverrideUntil = op.OverrideUntil.String
	}
	if op.CompletedAt.Valid {
		t := op.CompletedAt.Time
		resp.CompletedAt = &t
	}
	return resp
}

// handleListOperations handles GET /api/operations
func (s *Server) handleListOperations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	query := r.URL.Query()
	instanceID := query.Get("instance_id")

	limit := 50
	if limitStr := query.Get("limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	// No database means no audit trail was ever written.
	if s.db == nil {
		writeJSON(w, http.StatusOK, map[string][]OperationResponse{"operations": {}})
		return
	}

	ops, err := database.ListOperations(s.db, instanceID, limit)
	if err != nil {
		log.Printf("Failed to list operations: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "Failed to list operations")
		return
	}

	responses := make([]OperationResponse, 0, len(ops))
	for _, op := range ops {
		responses = append(responses, operationResponse(op))
	}

	writeJSON(w, http.StatusOK, map[string][]OperationResponse{"operations": responses})
}

// handleOperationStatus handles GET /api/operations/{id}
func (s *Server) handleOperationStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	operationID := strings.TrimPrefix(r.URL.Path, "/api/operations/")
	if operationID == "" || strings.Contains(operationID, "/") {
		http.NotFound(w, r)
		return
	}

	if s.db == nil {
		writeJSONError(w, http.StatusNotFound, "Operation not found")
		return
	}

	op, err := database.GetOperation(s.db, operationID)
	if err != nil {
		if err == sql.ErrNoRows {
			writeJSONError(w, http.StatusNotFound, "Operation not found")
			return
		}
		log.Printf("Failed to get operation %s: %v", operationID, err)
		writeJSONError(w, http.StatusInternalServerError, "Failed to get operation")
		return
	}

	writeJSON(w, http.StatusOK, operationResponse(*op))
}
