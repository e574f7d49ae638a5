// Package time contains time related helpers
package time

import "time"

// Ptr returns a pointer to t or nil if t is zero
func Ptr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// HourUTC truncates t to the start of its hour in UTC
func HourUTC(t time.Time) time.Time {
	return t.UTC().Truncate(time.Hour)
}
