/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package recurrence

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// Frequency identifies how often a rule repeats.
type Frequency string

const (
	FreqDaily   Frequency = "DAILY"
	FreqWeekly  Frequency = "WEEKLY"
	FreqMonthly Frequency = "MONTHLY" // declared, not expanded
	FreqYearly  Frequency = "YEARLY"  // declared, not expanded
)

// Rule is an immutable recurrence definition. The anchor (DTSTART) lives on the
// owning experience, not here; interval alignment is always computed against it.
type Rule struct {
	Frequency Frequency
	// Interval is "every N periods". Values below 1 are treated as 1.
	Interval int
	// ByWeekday holds RFC 5545 weekday tokens (SU..SA). WEEKLY only; when empty
	// the anchor's own weekday is used.
	ByWeekday []string
	// Until is an inclusive UTC cutoff for occurrences.
	Until *time.Time
	// Count is declared in stored schedules but not consumed by window
	// expansion. Kept so round-tripping an RRULE does not drop it.
	Count int
}

// rruleUntilLayout is the RFC 5545 UTC timestamp format.
const rruleUntilLayout = "20060102T150405Z"

var weekdayIndex = map[string]int{
	"SU": 0, "MO": 1, "TU": 2, "WE": 3, "TH": 4, "FR": 5, "SA": 6,
}

var weekdayToken = [7]string{"SU", "MO", "TU", "WE", "TH", "FR", "SA"}

// ParseWeekdays converts weekday tokens to sorted, deduplicated indexes
// (0=Sunday..6=Saturday). Unknown tokens are dropped.
func ParseWeekdays(tokens []string) []int {
	seen := make(map[int]struct{}, len(tokens))
	out := make([]int, 0, len(tokens))
	for _, tok := range tokens {
		idx, ok := weekdayIndex[strings.ToUpper(strings.TrimSpace(tok))]
		if !ok {
			continue
		}
		if _, dup := seen[idx]; dup {
			continue
		}
		seen[idx] = struct{}{}
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}

// ValidateRRule checks that s is a parseable RFC 5545 RRULE.
func ValidateRRule(s string) error {
	if _, err := rrule.StrToRRule(s); err != nil {
		return fmt.Errorf("invalid rrule %q: %w", s, err)
	}
	return nil
}

// ParseRRule converts an RFC 5545 RRULE string into a Rule. Only the fields the
// expansion engine understands are carried over; parsing is delegated to
// rrule-go so malformed input is rejected the same way everywhere.
func ParseRRule(s string) (Rule, error) {
	opt, err := rrule.StrToROption(s)
	if err != nil {
		return Rule{}, fmt.Errorf("parse rrule %q: %w", s, err)
	}

	var freq Frequency
	switch opt.Freq {
	case rrule.DAILY:
		freq = FreqDaily
	case rrule.WEEKLY:
		freq = FreqWeekly
	case rrule.MONTHLY:
		freq = FreqMonthly
	case rrule.YEARLY:
		freq = FreqYearly
	default:
		return Rule{}, fmt.Errorf("unsupported rrule frequency in %q", s)
	}

	r := Rule{
		Frequency: freq,
		Interval:  opt.Interval,
		Count:     opt.Count,
	}
	for _, wd := range opt.Byweekday {
		r.ByWeekday = append(r.ByWeekday, wd.String())
	}
	if !opt.Until.IsZero() {
		until := opt.Until.UTC()
		r.Until = &until
	}
	return r, nil
}

// RRuleString serializes the rule back to RFC 5545 form.
func (r Rule) RRuleString() string {
	parts := []string{"FREQ=" + string(r.Frequency)}
	if r.Interval > 1 {
		parts = append(parts, fmt.Sprintf("INTERVAL=%d", r.Interval))
	}
	if len(r.ByWeekday) > 0 {
		tokens := make([]string, 0, len(r.ByWeekday))
		for _, idx := range ParseWeekdays(r.ByWeekday) {
			tokens = append(tokens, weekdayToken[idx])
		}
		parts = append(parts, "BYDAY="+strings.Join(tokens, ","))
	}
	if r.Until != nil {
		parts = append(parts, "UNTIL="+r.Until.UTC().Format(rruleUntilLayout))
	}
	if r.Count > 0 {
		parts = append(parts, fmt.Sprintf("COUNT=%d", r.Count))
	}
	return strings.Join(parts, ";")
}

// Expandable reports whether the rule's frequency is implemented by the
// expansion engine. MONTHLY and YEARLY are part of the schema but yield no
// occurrences.
func (r Rule) Expandable() bool {
	return r.Frequency == FreqDaily || r.Frequency == FreqWeekly
}
