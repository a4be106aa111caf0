package model

import (
	"strings"
	"time"
)

const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02T15:04"
)

var localLayouts = []string{
	"2006-01-02T15:04:05",
	DateTimeLayout,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseDue parses a due date string as stored on tasks and alerts.
//
// Values without a zone are read in loc. Date-only values resolve to local midnight and
// report dateOnly=true. ok is false for empty or unparseable input.
func ParseDue(s string, loc *time.Location) (t time.Time, dateOnly bool, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false, false
	}
	if loc == nil {
		loc = time.Local
	}
	if d, err := time.ParseInLocation(DateLayout, s, loc); err == nil {
		return d, true, true
	}
	for _, layout := range localLayouts {
		if d, err := time.ParseInLocation(layout, s, loc); err == nil {
			return d, false, true
		}
	}
	if d, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return d.In(loc), false, true
	}
	return time.Time{}, false, false
}

// FormatDue renders t in the shape used for stored due dates.
func FormatDue(t time.Time, dateOnly bool) string {
	if dateOnly {
		return t.Format(DateLayout)
	}
	return t.Format(DateTimeLayout)
}

// DayOf truncates t to local midnight of its calendar day.
func DayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// ValidDue reports whether s is empty or parseable.
func ValidDue(s string) bool {
	if strings.TrimSpace(s) == "" {
		return true
	}
	_, _, ok := ParseDue(s, time.Local)
	return ok
}
