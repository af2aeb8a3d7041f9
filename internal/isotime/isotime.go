// Package isotime formats and parses the ISO-8601 timestamps stored with
// scraper bookkeeping rows.
package isotime

import (
	"fmt"
	"time"
)

// Layouts used in stored rows. Times are always UTC with a literal Z.
const (
	Layout     = "2006-01-02T15:04:05.000000Z"
	DateLayout = "2006-01-02"
)

// Clock returns the current time
type Clock func() time.Time

// SystemClock is the wall clock
func SystemClock() time.Time {
	return time.Now()
}

// Format renders t in UTC with microseconds, e.g. 2014-05-01T12:30:00.000000Z
func Format(t time.Time) string {
	return t.UTC().Format(Layout)
}

// FormatDate renders the UTC date of t
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// Now formats the clock's current time
func Now(clock Clock) string {
	if clock == nil {
		clock = SystemClock
	}
	return Format(clock())
}

// Parse reads a timestamp written by Format. RFC 3339 values are accepted
// too so hand-written config (last_changed) doesn't need microseconds.
func Parse(s string) (time.Time, error) {
	if t, err := time.Parse(Layout, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("parse ISO-8601 time %q", s)
}
