// Package fleet implements the managed EC2 instance operations: listing
// live state, starting with a scheduler-override window, and stopping.
package fleet

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"ec2manager/internal/awsec2"
	"ec2manager/internal/cache"
	"ec2manager/internal/config"
	"ec2manager/internal/telemetry"
)

// OverrideTagKey marks an instance a human started so the scheduler leaves
// it alone until the tag value (a UTC timestamp) passes.
const OverrideTagKey = "scheduler-override"

const (
	// MinOverrideHours and MaxOverrideHours bound the override window
	MinOverrideHours = 1
	MaxOverrideHours = 8

	// DefaultOverrideHours is used when a start request omits hours
	DefaultOverrideHours = 3

	listCacheKey = "instances"
	listCacheTTL = 10 * time.Second
)

// ErrNotManaged is returned for instance IDs outside the allow-list.
var ErrNotManaged = errors.New("instance is not in the allowed list")

// ErrInvalidHours is returned when an override window is out of bounds.
var ErrInvalidHours = fmt.Errorf("override hours must be between %d and %d", MinOverrideHours, MaxOverrideHours)

// InstanceStatus is the state of one managed instance as reported to clients.
type InstanceStatus struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Country  string  `json:"country"`
	State    string  `json:"state"`
	Override *string `json:"override"`
}

// Service coordinates EC2 calls for the allow-listed fleet.
type Service struct {
	api       awsec2.API
	instances []config.Instance
	listCache *cache.Cache
	now       func() time.Time
}

// NewService creates a fleet service. api may be nil, in which case every
// instance is reported in a simulated stopped state and mutations fail.
func NewService(api awsec2.API, instances []config.Instance) *Service {
	return &Service{
		api:       api,
		instances: instances,
		listCache: cache.New(listCacheTTL),
		now:       time.Now,
	}
}

// Instances returns the configured allow-list in display order.
func (s *Service) Instances() []config.Instance {
	return s.instances
}

// realIDs returns allow-listed IDs that can exist in AWS. IDs containing
// "example" are demo placeholders and are never sent to the EC2 API.
func (s *Service) realIDs() []string {
	var ids []string
	for _, inst := range s.instances {
		if strings.HasPrefix(inst.ID, "i-") && !strings.Contains(inst.ID, "example") {
			ids = append(ids, inst.ID)
		}
	}
	return ids
}

// List reports the current state of every allow-listed instance. AWS
// failures degrade to simulated stopped entries so the dashboard stays up
// even without credentials.
func (s *Service) List(ctx context.Context) []InstanceStatus {
	ctx, span := telemetry.StartSpan(ctx, "fleet.List")
	defer span.End()

	if cached, ok := s.listCache.Get(listCacheKey); ok {
		return cached.([]InstanceStatus)
	}

	described := s.describe(ctx)

	// Assemble in allow-list order; anything not described is simulated.
	results := make([]InstanceStatus, 0, len(s.instances))
	for _, inst := range s.instances {
		if status, ok := described[inst.ID]; ok {
			results = append(results, status)
			continue
		}
		results = append(results, InstanceStatus{
			ID:      inst.ID,
			Name:    inst.Name,
			Country: inst.Country,
			State:   "stopped", // Simulated - no AWS data for this instance
		})
	}

	s.listCache.Set(listCacheKey, results)
	return results
}

// describe fetches live state for the real instance IDs, keyed by ID.
// Returns an empty map on any failure.
func (s *Service) describe(ctx context.Context) map[string]InstanceStatus {
	described := make(map[string]InstanceStatus)

	realIDs := s.realIDs()
	if s.api == nil || len(realIDs) == 0 {
		return described
	}

	resp, err := s.api.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: realIDs,
	})
	if err != nil {
		// Don't expose raw AWS error details to clients
		log.Printf("AWS error describing instances: %v", err)
		return described
	}

	for _, reservation := range resp.Reservations {
		for _, instance := range reservation.Instances {
			if instance.InstanceId == nil {
				continue
			}
			id := *instance.InstanceId

			inst, ok := s.instanceByID(id)
			if !ok {
				continue
			}

			status := InstanceStatus{
				ID:      id,
				Name:    inst.Name,
				Country: inst.Country,
				State:   "unknown",
			}
			if instance.State != nil {
				status.State = string(instance.State.Name)
			}
			for _, tag := range instance.Tags {
				if tag.Key == nil || tag.Value == nil {
					continue
				}
				switch *tag.Key {
				case "Name":
					if *tag.Value != "" {
						status.Name = *tag.Value
					}
				case OverrideTagKey:
					v := *tag.Value
					status.Override = &v
				}
			}

			described[id] = status
		}
	}

	return described
}

// Start starts an allow-listed instance and tags it with an override window
// of the given number of hours. Returns the override expiry value written to
// the tag.
func (s *Service) Start(ctx context.Context, instanceID string, hours int) (string, error) {
	ctx, span := telemetry.StartSpan(ctx, "fleet.Start")
	defer span.End()

	if _, ok := s.instanceByID(instanceID); !ok {
		return "", ErrNotManaged
	}
	if hours < MinOverrideHours || hours > MaxOverrideHours {
		return "", ErrInvalidHours
	}
	if s.api == nil {
		return "", fmt.Errorf("EC2 client unavailable")
	}

	_, err := s.api.StartInstances(ctx, &ec2.StartInstancesInput{
		InstanceIds: []string{instanceID},
	})
	if err != nil {
		return "", fmt.Errorf("failed to start instance %s: %w", instanceID, err)
	}

	overrideValue := FormatOverride(s.now().UTC().Add(time.Duration(hours) * time.Hour))

	_, err = s.api.CreateTags(ctx, &ec2.CreateTagsInput{
		Resources: []string{instanceID},
		Tags: []ec2types.Tag{
			{Key: aws.String(OverrideTagKey), Value: aws.String(overrideValue)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to tag instance %s: %w", instanceID, err)
	}

	s.listCache.Delete(listCacheKey)
	return overrideValue, nil
}

// Stop stops an allow-listed instance and removes its override tag.
func (s *Service) Stop(ctx context.Context, instanceID string) error {
	ctx, span := telemetry.StartSpan(ctx, "fleet.Stop")
	defer span.End()

	if _, ok := s.instanceByID(instanceID); !ok {
		return ErrNotManaged
	}
	if s.api == nil {
		return fmt.Errorf("EC2 client unavailable")
	}

	_, err := s.api.StopInstances(ctx, &ec2.StopInstancesInput{
		InstanceIds: []string{instanceID},
	})
	if err != nil {
		return fmt.Errorf("failed to stop instance %s: %w", instanceID, err)
	}

	_, err = s.api.DeleteTags(ctx, &ec2.DeleteTagsInput{
		Resources: []string{instanceID},
		Tags: []ec2types.Tag{
			{Key: aws.String(OverrideTagKey)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to remove override tag from %s: %w", instanceID, err)
	}

	s.listCache.Delete(listCacheKey)
	return nil
}

// ClearOverride removes the override tag without touching instance state.
// The scheduler uses it to drop expired overrides.
func (s *Service) ClearOverride(ctx context.Context, instanceID string) error {
	if s.api == nil {
		return fmt.Errorf("EC2 client unavailable")
	}

	_, err := s.api.DeleteTags(ctx, &ec2.DeleteTagsInput{
		Resources: []string{instanceID},
		Tags: []ec2types.Tag{
			{Key: aws.String(OverrideTagKey)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to remove override tag from %s: %w", instanceID, err)
	}

	s.listCache.Delete(listCacheKey)
	return nil
}

func (s *Service) instanceByID(id string) (config.Instance, bool) {
	for _, inst := range s.instances {
		if inst.ID == id {
			return inst, true
		}
	}
	return config.Instance{}, false
}
