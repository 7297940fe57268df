package fleet

import (
	"fmt"
	"time"
)

// overrideLayout is the tag value format, a minute-resolution UTC timestamp.
const overrideLayout = "2006-01-02T15:04"

// FormatOverride renders an override expiry as a tag value.
func FormatOverride(t time.Time) string {
	return t.UTC().Format(overrideLayout)
}

// ParseOverride parses an override tag value back into a UTC time.
func ParseOverride(value string) (time.Time, error) {
	t, err := time.Parse(overrideLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid override value %q: %w", value, err)
	}
	return t.UTC(), nil
}

// OverrideExpired reports whether an override tag value has passed. Values
// that fail to parse count as expired so a corrupt tag cannot pin an
// instance running forever.
func OverrideExpired(value string, now time.Time) bool {
	until, err := ParseOverride(value)
	if err != nil {
		return true
	}
	return now.UTC().After(until)
}
