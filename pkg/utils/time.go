package utils

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

var timestampLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05"}

// ParseUserTime accepts an RFC3339 timestamp, a zone-less timestamp (read as UTC)
// or a bare YYYY-MM-DD date. A bare date used as an upper bound covers the whole day.
func ParseUserTime(timeStr string, isEndTime bool) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, timeStr, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}

	t, err := time.ParseInLocation(dateLayout, timeStr, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time format, expected RFC3339 or YYYY-MM-DD, got %q", timeStr)
	}
	if isEndTime {
		t = t.AddDate(0, 0, 1).Add(-time.Second)
	}
	return t, nil
}
