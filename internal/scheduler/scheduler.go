package scheduler

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"ec2manager/internal/database"
	"ec2manager/internal/fleet"
	"ec2manager/internal/telemetry"
)

// Scheduler runs the periodic stop sweep.
type Scheduler struct {
	cron   *cron.Cron
	fleet  *fleet.Service
	policy *Policy
	db     *sql.DB
	now    func() time.Time
}

// New creates a scheduler. db may be nil, in which case sweeps are not
// recorded in the audit trail.
func New(fleetSvc *fleet.Service, policy *Policy, db *sql.DB) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		fleet:  fleetSvc,
		policy: policy,
		db:     db,
		now:    time.Now,
	}
}

// Start registers the sweep with the given cron spec and starts the cron
// loop in the background.
func (s *Scheduler) Start(spec string) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		s.Sweep(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule stop sweep: %w", err)
	}

	s.cron.Start()
	log.Printf("Scheduler started with spec %q", spec)
	return nil
}

// Stop stops the cron loop and waits for a running sweep to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// Sweep stops running instances that are outside their allowed window and
// carry no valid override. Expired override tags are cleared even when the
// instance is allowed to keep running.
func (s *Scheduler) Sweep(ctx context.Context) {
	ctx, span := telemetry.StartSpan(ctx, "scheduler.Sweep")
	defer span.End()

	now := s.now().UTC()

	for _, status := range s.fleet.List(ctx) {
		if status.State != "running" {
			continue
		}

		if status.Override != nil {
			if !fleet.OverrideExpired(*status.Override, now) {
				continue
			}
			if err := s.fleet.ClearOverride(ctx, status.ID); err != nil {
				log.Printf("Sweep: failed to clear expired override on %s: %v", status.ID, err)
			}
		}

		if s.policy.Allowed(status.ID, now) {
			continue
		}

		s.stopInstance(ctx, status.ID)
	}
}

func (s *Scheduler) stopInstance(ctx context.Context, instanceID string) {
	var operationID string
	if s.db != nil {
		var err error
		operationID, err = database.CreateOperation(s.db, database.OpTypeScheduledStop, instanceID)
		if err != nil {
			log.Printf("Sweep: failed to record operation for %s: %v", instanceID, err)
		}
	}

	if err := s.fleet.Stop(ctx, instanceID); err != nil {
		log.Printf("Sweep: failed to stop %s: %v", instanceID, err)
		if operationID != "" {
			if err := database.FailOperation(s.db, operationID, "scheduled stop failed"); err != nil {
				log.Printf("Sweep: failed to update operation %s: %v", operationID, err)
			}
		}
		return
	}

	log.Printf("Sweep: stopped %s (outside allowed window)", instanceID)
	if operationID != "" {
		if err := database.CompleteOperation(s.db, operationID, "stopped outside allowed window", ""); err != nil {
			log.Printf("Sweep: failed to update operation %s: %v", operationID, err)
		}
	}
}
