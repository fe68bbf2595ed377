// Package models defines data structures exchanged with the Ask Rumi API.
package models

import (
	"fmt"
	"time"
)

// timestampLayouts are the formats the API emits. The server writes naive
// ISO-8601 timestamps (no zone), so RFC 3339 alone is not enough.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseTimestamp parses a server timestamp. Naive timestamps are read as local time.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp: %q", s)
}

// FormatDate renders a server timestamp as a short date, or the raw value if unparseable.
func FormatDate(s string) string {
	t, err := ParseTimestamp(s)
	if err != nil {
		return s
	}
	return t.Format("2006-01-02")
}
