// Package scheduler runs the periodic delay scan and daily digest jobs.
package scheduler

import "time"

// NextFireTime returns the smallest anchor + k*period strictly after now.
// k may be negative, so anchors in the future are walked backwards.
func NextFireTime(now, anchor time.Time, period time.Duration) time.Time {
	if period <= 0 {
		return anchor
	}
	diff := now.Sub(anchor)
	k := diff / period
	if diff < 0 && diff%period != 0 {
		k--
	}
	return anchor.Add((k + 1) * period)
}

// DailyAnchor returns today's hour:00 in now's location.
func DailyAnchor(now time.Time, hour int) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
}

// StartOfDay returns local midnight of now's day.
func StartOfDay(now time.Time) time.Time {
	return DailyAnchor(now, 0)
}
