package database

import (
	"fmt"
	"time"
)

// TimeLayout is the fixed-width UTC format used for every timestamp
// column, so that string comparison in SQL matches chronological order.
const TimeLayout = "2006-01-02T15:04:05.000000000Z"

// FormatTime renders t in UTC using TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime reads a timestamp column. Rows written by older tooling in
// plain RFC3339 are accepted too.
func ParseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("timestamp is empty")
	}
	if t, err := time.Parse(TimeLayout, value); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", value, err)
	}
	return t.UTC(), nil
}
