/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package recurrence implements the schedule expansion engine: pure UTC date
// arithmetic and the window expansion of recurrence rules into occurrence dates.
// Everything here operates on UTC day boundaries; the host timezone is never
// consulted.
package recurrence

import "time"

const day = 24 * time.Hour

// StartOfUTCDay truncates t to 00:00:00.000 UTC on t's UTC calendar date.
func StartOfUTCDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// EndOfUTCDay returns 23:59:59.999 UTC on t's UTC calendar date.
func EndOfUTCDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 23, 59, 59, int(999*time.Millisecond), time.UTC)
}

// AddDaysUTC adds n*24h to t. n may be negative.
func AddDaysUTC(t time.Time, n int) time.Time {
	return t.UTC().Add(time.Duration(n) * day)
}

// UTCWeekday returns the weekday index of t's UTC date, 0=Sunday..6=Saturday.
func UTCWeekday(t time.Time) int {
	return int(t.UTC().Weekday())
}

// MaxTime returns the later of a and b.
func MaxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

// MinTime returns the earlier of a and b.
func MinTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

// ClampUTC reports whether t lies in [start, end]; ok is false when out of range.
func ClampUTC(t, start, end time.Time) (time.Time, bool) {
	if t.Before(start) || t.After(end) {
		return time.Time{}, false
	}
	return t, true
}

// DaysBetweenUTC returns b's UTC day minus a's UTC day in whole days.
// Negative when b precedes a.
func DaysBetweenUTC(a, b time.Time) int {
	return int(StartOfUTCDay(b).Sub(StartOfUTCDay(a)) / day)
}

// StartOfUTCWeekSunday returns the Sunday UTC midnight of the week containing t,
// with weeks running Sunday through Saturday.
func StartOfUTCWeekSunday(t time.Time) time.Time {
	d := StartOfUTCDay(t)
	return AddDaysUTC(d, -UTCWeekday(d))
}
