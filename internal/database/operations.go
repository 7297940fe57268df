package database

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
)

// CreateOperation inserts a pending operation record and returns its ID.
func CreateOperation(db *sql.DB, operationType, instanceID string) (string, error) {
	operationID := uuid.New().String()

	query := `
		INSERT INTO instance_operations (id, operation_type, instance_id, status)
		VALUES (?, ?, ?, ?)
	`

	if _, err := db.Exec(query, operationID, operationType, instanceID, StatusPending); err != nil {
		return "", fmt.Errorf("failed to create operation: %w", err)
	}

	return operationID, nil
}

// CompleteOperation marks an operation as completed with an outcome message.
// overrideUntil is stored when non-empty so the audit trail shows the window
// that was granted.
func CompleteOperation(db *sql.DB, operationID, message, overrideUntil string) error {
	var override sql.NullString
	if overrideUntil != "" {
		override = sql.NullString{String: overrideUntil, Valid: true}
	}

	query := `
		UPDATE instance_operations
		SET status = ?, message = ?, override_until = ?, completed_at = ?
		WHERE id = ?
	`

	if _, err := db.Exec(query, StatusCompleted, message, override, time.Now().UTC(), operationID); err != nil {
		return fmt.Errorf("failed to complete operation: %w", err)
	}
	return nil
}

// FailOperation marks an operation as failed with an error message.
func FailOperation(db *sql.DB, operationID, message string) error {
	query := `
		UPDATE instance_operations
		SET status = ?, message = ?, completed_at = ?
		WHERE id = ?
	`

	if _, err := db.Exec(query, StatusFailed, message, time.Now().UTC(), operationID); err != nil {
		return fmt.Errorf("failed to mark operation failed: %w", err)
	}
	return nil
}

// GetOperation retrieves a single operation by ID.
func GetOperation(db *sql.DB, operationID string) (*InstanceOperation, error) {
	var op InstanceOperation
	err := db.QueryRow(`
		SELECT id, operation_type, instance_id, status, message, override_until, created_at, completed_at
		FROM instance_operations WHERE id = ?
	`, operationID).Scan(
		&op.ID, &op.OperationType, &op.InstanceID, &op.Status,
		&op.Message, &op.OverrideUntil, &op.CreatedAt, &op.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &op, nil
}

// ListOperations returns the most recent operations, newest first. When
// instanceID is non-empty only that instance's operations are returned.
func ListOperations(db *sql.DB, instanceID string, limit int) ([]InstanceOperation, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, operation_type, instance_id, status, message, override_until, created_at, completed_at
		FROM instance_operations
	`
	args := []interface{}{}
	if instanceID != "" {
		query += " WHERE instance_id = ?"
		args = append(args, instanceID)
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query operations: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Printf("Failed to close rows: %v", err)
		}
	}()

	var ops []InstanceOperation
	for rows.Next() {
		var op InstanceOperation
		err := rows.Scan(
			&op.ID, &op.OperationType, &op.InstanceID, &op.Status,
			&op.Message, &op.OverrideUntil, &op.CreatedAt, &op.CompletedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan operation row: %w", err)
		}
		ops = append(ops, op)
	}

	return ops, rows.Err()
}

// CleanupOldOperations removes finished operations older than the given age.
func CleanupOldOperations(db *sql.DB, olderThan time.Duration) error {
	cutoff := time.Now().UTC().Add(-olderThan)
	_, err := db.Exec(`
		DELETE FROM instance_operations
		WHERE status != ? AND created_at < ?
	`, StatusPending, cutoff)
	if err != nil {
		return fmt.Errorf("failed to cleanup operations: %w", err)
	}
	return nil
}
