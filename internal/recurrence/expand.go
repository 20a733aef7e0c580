/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package recurrence

import "time"

// DefaultMaxResults bounds a single expansion. It guards against runaway
// intervals, not legitimate schedule sizes.
const DefaultMaxResults = 1000

// DefaultLookaheadDays is how far NextOccurrenceUTC scans before giving up.
const DefaultLookaheadDays = 365

// ExpandWindow computes the ordered occurrence dates of rule inside
// [windowStart, windowEnd], both UTC-day truncated and inclusive. Occurrences
// never precede the anchor's UTC day even when the window starts earlier, and
// rule.Until shrinks the window end. The result is eager, strictly ascending,
// duplicate free, and capped at maxResults entries. A frequency the engine does
// not implement yields an empty result, never an error.
func ExpandWindow(rule Rule, anchor, windowStart, windowEnd time.Time, maxResults int) []time.Time {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	interval := rule.Interval
	if interval < 1 {
		interval = 1
	}

	anchorDay := StartOfUTCDay(anchor)
	from := StartOfUTCDay(MaxTime(windowStart, anchorDay))
	hardEnd := StartOfUTCDay(windowEnd)
	if rule.Until != nil {
		hardEnd = MinTime(hardEnd, StartOfUTCDay(*rule.Until))
	}
	if hardEnd.Before(from) {
		return nil
	}

	switch rule.Frequency {
	case FreqDaily:
		return expandDaily(anchorDay, from, hardEnd, interval, maxResults)
	case FreqWeekly:
		return expandWeekly(rule, anchorDay, from, hardEnd, interval, maxResults)
	default:
		// MONTHLY/YEARLY are declared in the rule schema but the engine does
		// not expand them.
		return nil
	}
}

// expandDaily emits every interval-th day counting from the anchor day.
func expandDaily(anchorDay, from, hardEnd time.Time, interval, maxResults int) []time.Time {
	offset := DaysBetweenUTC(anchorDay, from)
	if rem := offset % interval; rem != 0 {
		from = AddDaysUTC(from, interval-rem)
	}

	var out []time.Time
	for d := from; !d.After(hardEnd) && len(out) < maxResults; d = AddDaysUTC(d, interval) {
		out = append(out, d)
	}
	return out
}

// expandWeekly walks Sunday-start weeks anchored to the week containing the
// anchor day, visiting only weeks whose offset is a multiple of interval, and
// emits the target weekdays of each qualifying week in ascending order.
func expandWeekly(rule Rule, anchorDay, from, hardEnd time.Time, interval, maxResults int) []time.Time {
	targets := ParseWeekdays(rule.ByWeekday)
	if len(targets) == 0 {
		targets = []int{UTCWeekday(anchorDay)}
	}

	week0 := StartOfUTCWeekSunday(anchorDay)
	weekOffset := DaysBetweenUTC(week0, StartOfUTCWeekSunday(from)) / 7
	if rem := weekOffset % interval; rem != 0 {
		weekOffset += interval - rem
	}

	var out []time.Time
	for week := AddDaysUTC(week0, weekOffset*7); !week.After(hardEnd); week = AddDaysUTC(week, 7*interval) {
		for _, wd := range targets {
			d := AddDaysUTC(week, wd)
			if d.Before(from) || d.After(hardEnd) {
				continue
			}
			out = append(out, d)
			if len(out) >= maxResults {
				return out
			}
		}
	}
	return out
}

// NextOccurrenceUTC finds the soonest occurrence at or after from within
// lookaheadDays. The second return value is false when none exists inside the
// lookahead horizon.
func NextOccurrenceUTC(rule Rule, anchor, from time.Time, lookaheadDays int) (time.Time, bool) {
	if lookaheadDays <= 0 {
		lookaheadDays = DefaultLookaheadDays
	}
	start := StartOfUTCDay(from)
	occs := ExpandWindow(rule, anchor, start, AddDaysUTC(start, lookaheadDays), 1)
	if len(occs) == 0 {
		return time.Time{}, false
	}
	return occs[0], true
}
