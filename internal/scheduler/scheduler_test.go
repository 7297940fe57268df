package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"ec2manager/internal/config"
	"ec2manager/internal/fleet"
)

// sweepEC2 is a minimal fake EC2 API for sweep tests.
type sweepEC2 struct {
	state    string
	override string

	stoppedIDs  []string
	deletedTags int
}

func (f *sweepEC2) DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
	instance := ec2types.Instance{
		InstanceId: aws.String("i-0123456789abcdef0"),
		State:      &ec2types.InstanceState{Name: ec2types.InstanceStateName(f.state)},
	}
	if f.override != "" {
		instance.Tags = []ec2types.Tag{
			{Key: aws.String(fleet.OverrideTagKey), Value: aws.String(f.override)},
		}
	}
	return &ec2.DescribeInstancesOutput{
		Reservations: []ec2types.Reservation{{Instances: []ec2types.Instance{instance}}},
	}, nil
}

func (f *sweepEC2) StartInstances(ctx context.Context, params *ec2.StartInstancesInput, optFns ...func(*ec2.Options)) (*ec2.StartInstancesOutput, error) {
	return &ec2.StartInstancesOutput{}, nil
}

func (f *sweepEC2) StopInstances(ctx context.Context, params *ec2.StopInstancesInput, optFns ...func(*ec2.Options)) (*ec2.StopInstancesOutput, error) {
	f.stoppedIDs = append(f.stoppedIDs, params.InstanceIds...)
	return &ec2.StopInstancesOutput{}, nil
}

func (f *sweepEC2) CreateTags(ctx context.Context, params *ec2.CreateTagsInput, optFns ...func(*ec2.Options)) (*ec2.CreateTagsOutput, error) {
	return &ec2.CreateTagsOutput{}, nil
}

func (f *sweepEC2) DeleteTags(ctx context.Context, params *ec2.DeleteTagsInput, optFns ...func(*ec2.Options)) (*ec2.DeleteTagsOutput, error) {
	f.deletedTags++
	return &ec2.DeleteTagsOutput{}, nil
}

func newSweepScheduler(api *sweepEC2, policy *Policy, now time.Time) *Scheduler {
	instances := []config.Instance{{ID: "i-0123456789abcdef0", Name: "vpn", Country: "de"}}
	s := New(fleet.NewService(api, instances), policy, nil)
	s.now = func() time.Time { return now }
	return s
}

func TestSweepStopsOutsideWindow(t *testing.T) {
	api := &sweepEC2{state: "running"}
	// Saturday, default window is weekdays only.
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	policy := &Policy{Default: &Window{Days: []string{"Mon", "Tue", "Wed", "Thu", "Fri"}, Start: 8, End: 19}}

	s := newSweepScheduler(api, policy, now)
	s.Sweep(context.Background())

	if len(api.stoppedIDs) != 1 {
		t.Fatalf("stoppedIDs = %v, want one stop", api.stoppedIDs)
	}
}

func TestSweepHonorsValidOverride(t *testing.T) {
	api := &sweepEC2{state: "running", override: "2026-03-14T18:00"}
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC) // Saturday, but override valid
	policy := &Policy{Default: &Window{Days: []string{"Mon"}, Start: 8, End: 19}}

	s := newSweepScheduler(api, policy, now)
	s.Sweep(context.Background())

	if len(api.stoppedIDs) != 0 {
		t.Fatalf("instance with a valid override must not be stopped, got %v", api.stoppedIDs)
	}
}

func TestSweepClearsExpiredOverrideAndStops(t *testing.T) {
	api := &sweepEC2{state: "running", override: "2026-03-14T08:00"}
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC) // Saturday, override expired
	policy := &Policy{Default: &Window{Days: []string{"Mon"}, Start: 8, End: 19}}

	s := newSweepScheduler(api, policy, now)
	s.Sweep(context.Background())

	if api.deletedTags == 0 {
		t.Error("expired override tag should be cleared")
	}
	if len(api.stoppedIDs) != 1 {
		t.Errorf("stoppedIDs = %v, want one stop", api.stoppedIDs)
	}
}

func TestSweepLeavesStoppedInstancesAlone(t *testing.T) {
	api := &sweepEC2{state: "stopped"}
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	policy := &Policy{Default: &Window{Days: []string{"Mon"}, Start: 8, End: 19}}

	s := newSweepScheduler(api, policy, now)
	s.Sweep(context.Background())

	if len(api.stoppedIDs) != 0 {
		t.Fatalf("stopped instances must not be re-stopped, got %v", api.stoppedIDs)
	}
}

func TestSweepAllowsInWindowInstances(t *testing.T) {
	api := &sweepEC2{state: "running"}
	now := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC) // Monday 10:00
	policy := &Policy{Default: &Window{Days: []string{"Mon"}, Start: 8, End: 19}}

	s := newSweepScheduler(api, policy, now)
	s.Sweep(context.Background())

	if len(api.stoppedIDs) != 0 {
		t.Fatalf("in-window instances must keep running, got %v", api.stoppedIDs)
	}
}
