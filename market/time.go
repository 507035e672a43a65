package market

import (
	"fmt"
	"strings"
	"time"
)

// RoundTripLayout renders seven fractional digits and the zone, so a
// formatted time parses back to the same instant.
const RoundTripLayout = "2006-01-02T15:04:05.0000000Z07:00"

func FormatTime(t time.Time) string {
	return t.Format(RoundTripLayout)
}

// ParseTime accepts RFC3339 with or without fractional seconds.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad time %q: %w", s, err)
	}
	return t, nil
}
