package database

import (
	"database/sql"
	"time"
)

type InstanceOperation struct {
	ID            string
	OperationType string
	InstanceID    string
	Status        string
	Message       sql.NullString
	OverrideUntil sql.NullString
	CreatedAt     time.Time
	CompletedAt   sql.NullTime
}

type SystemVitalLog struct {
	ID               int
	Timestamp        time.Time
	CPUPercent       float64
	MemoryPercent    float64
	DiskUsagePercent float64
}

const (
	// Operation Types
	OpTypeStart         = "start"
	OpTypeStop          = "stop"
	OpTypeScheduledStop = "scheduled_stop"

	// Status Choices
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)
