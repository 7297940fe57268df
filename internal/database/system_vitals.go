package database

import (
	"database/sql"
	"fmt"
	"time"
)

// RecordVitals stores a system vitals sample.
func RecordVitals(db *sql.DB, cpuPercent, memPercent, diskPercent float64) error {
	_, err := db.Exec(`
		INSERT INTO system_vital_logs (timestamp, cpu_percent, memory_percent, disk_usage_percent)
		VALUES (?, ?, ?, ?)
	`, time.Now().UTC(), cpuPercent, memPercent, diskPercent)
	if err != nil {
		return fmt.Errorf("failed to record vitals: %w", err)
	}
	return nil
}

// GetLatestVitals retrieves the most recent vitals sample.
// Returns nil if no samples exist (not an error condition).
func GetLatestVitals(db *sql.DB) (*SystemVitalLog, error) {
	query := `
		SELECT id, timestamp, cpu_percent, memory_percent, disk_usage_percent
		FROM system_vital_logs
		ORDER BY timestamp DESC
		LIMIT 1
	`

	var m SystemVitalLog
	err := db.QueryRow(query).Scan(&m.ID, &m.Timestamp, &m.CPUPercent, &m.MemoryPercent, &m.DiskUsagePercent)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query latest vitals: %w", err)
	}
	return &m, nil
}

// GetVitalsForTimeRange retrieves vitals samples between start and end.
func GetVitalsForTimeRange(db *sql.DB, start, end time.Time) ([]SystemVitalLog, error) {
	query := `
		SELECT id, timestamp, cpu_percent, memory_percent, disk_usage_percent
		FROM system_vital_logs
		WHERE timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC
	`

	rows, err := db.Query(query, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query vitals: %w", err)
	}
	defer rows.Close()

	var metrics []SystemVitalLog
	for rows.Next() {
		var m SystemVitalLog
		err := rows.Scan(&m.ID, &m.Timestamp, &m.CPUPercent, &m.MemoryPercent, &m.DiskUsagePercent)
		if err != nil {
			return nil, fmt.Errorf("failed to scan vitals row: %w", err)
		}
		metrics = append(metrics, m)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	if len(metrics) == 0 {
		return []SystemVitalLog{}, nil
	}

	return metrics, nil
}

// CleanupOldVitals removes samples older than the given age.
func CleanupOldVitals(db *sql.DB, olderThan time.Duration) error {
	cutoff := time.Now().UTC().Add(-olderThan)
	if _, err := db.Exec(`DELETE FROM system_vital_logs WHERE timestamp < ?`, cutoff); err != nil {
		return fmt.Errorf("failed to cleanup vitals: %w", err)
	}
	return nil
}
