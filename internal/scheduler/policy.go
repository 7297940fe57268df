// Package scheduler stops managed instances outside their allowed hours
// unless a human set a scheduler-override window.
package scheduler

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Window describes when an instance is allowed to run. Hours are UTC.
// Start is inclusive, End exclusive. End smaller than Start means the window
// crosses midnight. Equal Start and End means always allowed.
type Window struct {
	Days  []string `yaml:"days"`
	Start int      `yaml:"start"`
	End   int      `yaml:"end"`
}

// Policy maps instances to their run windows. Instances without an entry
// fall back to Default; with no Default they are never stopped.
type Policy struct {
	Default   *Window           `yaml:"default"`
	Instances map[string]Window `yaml:"instances"`
}

// LoadPolicy reads a schedule policy from a YAML file. A missing file yields
// an empty policy, which never stops anything.
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Policy{}, nil
		}
		return nil, fmt.Errorf("failed to read schedule policy: %w", err)
	}

	var policy Policy
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return nil, fmt.Errorf("failed to parse schedule policy: %w", err)
	}

	if err := policy.validate(); err != nil {
		return nil, err
	}

	return &policy, nil
}

func (p *Policy) validate() error {
	check := func(name string, w Window) error {
		if w.Start < 0 || w.Start > 23 || w.End < 0 || w.End > 23 {
			return fmt.Errorf("schedule %s: hours must be 0..23, got start=%d end=%d", name, w.Start, w.End)
		}
		for _, day := range w.Days {
			if _, ok := parseDay(day); !ok {
				return fmt.Errorf("schedule %s: unknown day %q", name, day)
			}
		}
		return nil
	}

	if p.Default != nil {
		if err := check("default", *p.Default); err != nil {
			return err
		}
	}
	for id, w := range p.Instances {
		if err := check(id, w); err != nil {
			return err
		}
	}
	return nil
}

// Allowed reports whether the instance may run at the given time.
func (p *Policy) Allowed(instanceID string, t time.Time) bool {
	window, ok := p.Instances[instanceID]
	if !ok {
		if p.Default == nil {
			return true
		}
		window = *p.Default
	}
	return window.Contains(t)
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	t = t.UTC()

	if len(w.Days) > 0 {
		dayMatched := false
		for _, day := range w.Days {
			if wd, ok := parseDay(day); ok && wd == t.Weekday() {
				dayMatched = true
				break
			}
		}
		if !dayMatched {
			return false
		}
	}

	hour := t.Hour()
	switch {
	case w.Start == w.End:
		return true
	case w.Start < w.End:
		return hour >= w.Start && hour < w.End
	default:
		// Overnight window
		return hour >= w.Start || hour < w.End
	}
}

func parseDay(day string) (time.Weekday, bool) {
	switch strings.ToLower(strings.TrimSpace(day)) {
	case "sun", "sunday":
		return time.Sunday, true
	case "mon", "monday":
		return time.Monday, true
	case "tue", "tuesday":
		return time.Tuesday, true
	case "wed", "wednesday":
		return time.Wednesday, true
	case "thu", "thursday":
		return time.Thursday, true
	case "fri", "friday":
		return time.Friday, true
	case "sat", "saturday":
		return time.Saturday, true
	}
	return 0, false
}
