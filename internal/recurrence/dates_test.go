/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package recurrence

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestStartAndEndOfUTCDay(t *testing.T) {
	in := time.Date(2024, time.March, 5, 14, 30, 45, 123456789, time.UTC)

	start := StartOfUTCDay(in)
	if !start.Equal(date(2024, time.March, 5)) {
		t.Fatalf("StartOfUTCDay = %v, want 2024-03-05T00:00:00Z", start)
	}

	end := EndOfUTCDay(in)
	want := time.Date(2024, time.March, 5, 23, 59, 59, int(999*time.Millisecond), time.UTC)
	if !end.Equal(want) {
		t.Fatalf("EndOfUTCDay = %v, want %v", end, want)
	}
}

func TestStartOfUTCDayNonUTCInput(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)
	// 2024-03-05 03:00 +09:00 is 2024-03-04 18:00 UTC.
	in := time.Date(2024, time.March, 5, 3, 0, 0, 0, loc)

	got := StartOfUTCDay(in)
	if !got.Equal(date(2024, time.March, 4)) {
		t.Fatalf("StartOfUTCDay = %v, want 2024-03-04T00:00:00Z", got)
	}
}

func TestAddDaysUTC(t *testing.T) {
	base := date(2024, time.January, 10)
	if got := AddDaysUTC(base, 5); !got.Equal(date(2024, time.January, 15)) {
		t.Fatalf("AddDaysUTC(+5) = %v", got)
	}
	if got := AddDaysUTC(base, -10); !got.Equal(date(2023, time.December, 31)) {
		t.Fatalf("AddDaysUTC(-10) = %v", got)
	}
}

func TestDaysBetweenUTC(t *testing.T) {
	a := time.Date(2024, time.January, 1, 23, 0, 0, 0, time.UTC)
	b := time.Date(2024, time.January, 4, 1, 0, 0, 0, time.UTC)

	if got := DaysBetweenUTC(a, b); got != 3 {
		t.Fatalf("DaysBetweenUTC = %d, want 3", got)
	}
	if got := DaysBetweenUTC(b, a); got != -3 {
		t.Fatalf("DaysBetweenUTC reversed = %d, want -3", got)
	}
	if got := DaysBetweenUTC(a, a); got != 0 {
		t.Fatalf("DaysBetweenUTC same day = %d, want 0", got)
	}
}

func TestStartOfUTCWeekSunday(t *testing.T) {
	// 2024-01-01 is a Monday; its week starts Sunday 2023-12-31.
	if got := StartOfUTCWeekSunday(date(2024, time.January, 1)); !got.Equal(date(2023, time.December, 31)) {
		t.Fatalf("week start for Monday = %v, want 2023-12-31", got)
	}
	// A Sunday is its own week start.
	if got := StartOfUTCWeekSunday(date(2023, time.December, 31)); !got.Equal(date(2023, time.December, 31)) {
		t.Fatalf("week start for Sunday = %v, want 2023-12-31", got)
	}
	// 2024-01-06 is a Saturday, still week of 2023-12-31.
	if got := StartOfUTCWeekSunday(date(2024, time.January, 6)); !got.Equal(date(2023, time.December, 31)) {
		t.Fatalf("week start for Saturday = %v, want 2023-12-31", got)
	}
}

func TestClampUTC(t *testing.T) {
	start := date(2024, time.January, 1)
	end := date(2024, time.January, 31)

	if _, ok := ClampUTC(date(2024, time.January, 15), start, end); !ok {
		t.Fatalf("in-range value reported out of range")
	}
	if _, ok := ClampUTC(date(2023, time.December, 1), start, end); ok {
		t.Fatalf("value before range reported in range")
	}
	if _, ok := ClampUTC(date(2024, time.February, 1), start, end); ok {
		t.Fatalf("value after range reported in range")
	}
	if _, ok := ClampUTC(start, start, end); !ok {
		t.Fatalf("boundary value should be in range")
	}
}

func TestMinMaxTime(t *testing.T) {
	a := date(2024, time.January, 1)
	b := date(2024, time.June, 1)

	if got := MaxTime(a, b); !got.Equal(b) {
		t.Fatalf("MaxTime = %v, want %v", got, b)
	}
	if got := MinTime(a, b); !got.Equal(a) {
		t.Fatalf("MinTime = %v, want %v", got, a)
	}
	if got := MaxTime(a, a); !got.Equal(a) {
		t.Fatalf("MaxTime equal operands = %v, want %v", got, a)
	}
}

func TestUTCWeekday(t *testing.T) {
	if got := UTCWeekday(date(2023, time.December, 31)); got != 0 {
		t.Fatalf("Sunday index = %d, want 0", got)
	}
	if got := UTCWeekday(date(2024, time.January, 6)); got != 6 {
		t.Fatalf("Saturday index = %d, want 6", got)
	}
}
