package entity

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the storage format of every date column.
const DateLayout = "2006-01-02"

// ParseDate parses a stored date. Values carrying a time part ("2024-01-02T00:00:00Z",
// "2024-01-02 15:04:05") are truncated to the calendar date.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "T "); i >= 0 {
		s = s[:i]
	}
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return d, nil
}

// FormatDate formats d as YYYY-MM-DD.
func FormatDate(d time.Time) string {
	return d.Format(DateLayout)
}

// DateOf returns the calendar date of t in loc, as UTC midnight.
func DateOf(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NextDay returns the following calendar date.
func NextDay(d time.Time) time.Time {
	return d.AddDate(0, 0, 1)
}
