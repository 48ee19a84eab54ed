package query

import (
	"strings"
	"time"
)

var dateLayouts = []string{time.DateOnly, time.RFC3339}

// ParseDate parses a YYYY-MM-DD (or RFC 3339) filter value. A malformed
// value yields the zero time, which the builder treats as no constraint.
func ParseDate(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
