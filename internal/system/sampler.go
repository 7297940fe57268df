package system

import (
	"database/sql"
	"log"
	"time"

	"ec2manager/internal/database"
)

const (
	// vitalsRetention bounds the system_vital_logs table
	vitalsRetention = 7 * 24 * time.Hour

	// operationRetention bounds the instance_operations audit table
	operationRetention = 30 * 24 * time.Hour
)

// Sampler records vitals into the database at a fixed interval so the
// history endpoint has data to serve. It also prunes aged rows so the
// tables stay bounded.
type Sampler struct {
	db       *sql.DB
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

// NewSampler creates a sampler writing to db every interval.
func NewSampler(db *sql.DB, interval time.Duration) *Sampler {
	return &Sampler{
		db:       db,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the sampling loop in the background.
func (s *Sampler) Start() {
	go s.run()
}

// Stop terminates the sampling loop and waits for it to exit.
func (s *Sampler) Stop() {
	close(s.stop)
	<-s.done
}

func (s *Sampler) run() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sample()
		case <-s.stop:
			return
		}
	}
}

func (s *Sampler) sample() {
	vitals, err := GetVitals()
	if err != nil {
		log.Printf("Failed to sample system vitals: %v", err)
		return
	}

	if err := database.RecordVitals(s.db, vitals.CPUPercent, vitals.MemPercent, vitals.DiskPercent); err != nil {
		log.Printf("Failed to record system vitals: %v", err)
	}

	if err := database.CleanupOldVitals(s.db, vitalsRetention); err != nil {
		log.Printf("Failed to cleanup old vitals: %v", err)
	}

	if err := database.CleanupOldOperations(s.db, operationRetention); err != nil {
		log.Printf("Failed to cleanup old operations: %v", err)
	}
}
