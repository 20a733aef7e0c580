/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package recurrence

import (
	"testing"
	"time"
)

func TestParseRRuleWeekly(t *testing.T) {
	rule, err := ParseRRule("FREQ=WEEKLY;INTERVAL=2;BYDAY=MO,WE")
	if err != nil {
		t.Fatalf("ParseRRule returned error: %v", err)
	}
	if rule.Frequency != FreqWeekly {
		t.Fatalf("frequency = %q, want WEEKLY", rule.Frequency)
	}
	if rule.Interval != 2 {
		t.Fatalf("interval = %d, want 2", rule.Interval)
	}
	if len(rule.ByWeekday) != 2 || rule.ByWeekday[0] != "MO" || rule.ByWeekday[1] != "WE" {
		t.Fatalf("byweekday = %v, want [MO WE]", rule.ByWeekday)
	}
}

func TestParseRRuleUntilAndCount(t *testing.T) {
	rule, err := ParseRRule("FREQ=DAILY;UNTIL=20240131T000000Z;COUNT=10")
	if err != nil {
		t.Fatalf("ParseRRule returned error: %v", err)
	}
	if rule.Until == nil || !rule.Until.Equal(date(2024, time.January, 31)) {
		t.Fatalf("until = %v, want 2024-01-31", rule.Until)
	}
	if rule.Count != 10 {
		t.Fatalf("count = %d, want 10", rule.Count)
	}
}

func TestParseRRuleRejectsGarbage(t *testing.T) {
	if _, err := ParseRRule("FREQ=SOMETIMES"); err == nil {
		t.Fatalf("expected error for invalid frequency")
	}
	if err := ValidateRRule("not an rrule"); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestRRuleStringRoundTrip(t *testing.T) {
	until := date(2024, time.June, 1)
	rule := Rule{
		Frequency: FreqWeekly,
		Interval:  2,
		ByWeekday: []string{"WE", "MO"},
		Until:     &until,
	}

	s := rule.RRuleString()
	if s != "FREQ=WEEKLY;INTERVAL=2;BYDAY=MO,WE;UNTIL=20240601T000000Z" {
		t.Fatalf("RRuleString = %q", s)
	}

	parsed, err := ParseRRule(s)
	if err != nil {
		t.Fatalf("round-trip parse failed: %v", err)
	}
	if parsed.Frequency != rule.Frequency || parsed.Interval != rule.Interval {
		t.Fatalf("round-trip mismatch: %+v", parsed)
	}
}

func TestParseWeekdays(t *testing.T) {
	got := ParseWeekdays([]string{"fr", "MO", "MO", "nope", " we "})
	if len(got) != 3 || got[0] != 1 || got[1] != 3 || got[2] != 5 {
		t.Fatalf("ParseWeekdays = %v, want [1 3 5]", got)
	}
}

func TestExpandableFrequencies(t *testing.T) {
	if !(Rule{Frequency: FreqDaily}).Expandable() {
		t.Fatalf("DAILY should be expandable")
	}
	if (Rule{Frequency: FreqMonthly}).Expandable() {
		t.Fatalf("MONTHLY should not be expandable")
	}
}
