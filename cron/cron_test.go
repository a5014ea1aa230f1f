package cron

import (
	"strings"
	"testing"
	"time"
)

// TestValidateFrequencyRejectsEveryMinute covers the first half of
// scenario 8: "* * * * *" fires every minute, well under the 5-minute
// floor, and the error names the cause.
func TestValidateFrequencyRejectsEveryMinute(t *testing.T) {
	s, err := Parse("* * * * *")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	err = ValidateFrequency(s, time.Unix(0, 0))
	if err == nil {
		t.Fatalf("expected an error for a once-a-minute schedule")
	}
	if !strings.Contains(err.Error(), "fires every") {
		t.Fatalf("expected error to mention \"fires every\", got %q", err.Error())
	}
}

// TestValidateIntervalMsRejectsTooShort covers the second half of
// scenario 8: a raw 60-second interval (passed independently of any cron
// expression) is rejected with a "too short" message.
func TestValidateIntervalMsRejectsTooShort(t *testing.T) {
	err := ValidateIntervalMs(60_000)
	if err == nil {
		t.Fatalf("expected an error for a 60-second interval")
	}
	if !strings.Contains(err.Error(), "too short") {
		t.Fatalf("expected error to mention \"too short\", got %q", err.Error())
	}
}

// TestValidateFrequencyAcceptsFiveMinuteFloor covers the third half of
// scenario 8: "*/5 * * * *" sits exactly at the floor and must be
// accepted.
func TestValidateFrequencyAcceptsFiveMinuteFloor(t *testing.T) {
	s, err := Parse("*/5 * * * *")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if err := ValidateFrequency(s, time.Unix(0, 0)); err != nil {
		t.Fatalf("expected no error at the 5-minute floor, got %v", err)
	}
}

// TestPresetAliasesMatchExpectedFields covers the round-trip property
// that parsing a preset and finding its next occurrence lands on the
// field values the alias implies (e.g. @daily fires at 00:00).
func TestPresetAliasesMatchExpectedFields(t *testing.T) {
	s, err := Parse("@daily")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	from := time.Date(2026, 8, 1, 13, 0, 0, 0, time.UTC)
	next, err := s.Next(from)
	if err != nil {
		t.Fatalf("next failed: %v", err)
	}
	if next.Hour() != 0 || next.Minute() != 0 {
		t.Fatalf("expected @daily to land at 00:00, got %s", next.Format(time.Kitchen))
	}
}

// TestNextIsStrictlyAfterFrom covers the round-trip property that
// getNextCronDate(expr, from) is always strictly greater than from.
func TestNextIsStrictlyAfterFrom(t *testing.T) {
	s, err := Parse("0 * * * *")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	from := time.Date(2026, 8, 1, 13, 0, 0, 0, time.UTC)
	next, err := s.Next(from)
	if err != nil {
		t.Fatalf("next failed: %v", err)
	}
	if !next.After(from) {
		t.Fatalf("expected next (%s) to be strictly after from (%s)", next, from)
	}
}

// TestDomDowOrRule covers cron's classic rule: when both day-of-month and
// day-of-week are restricted, a date matching either satisfies the
// schedule.
func TestDomDowOrRule(t *testing.T) {
	// 15th of the month OR Monday, at 00:00.
	s, err := Parse("0 0 15 * 1")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	// 2026-08-03 is a Monday but not the 15th.
	monday := time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)
	if !domDowMatches(s, monday) {
		t.Fatalf("expected Monday to match via the day-of-week branch of the OR rule")
	}
	// 2026-08-15 is a Saturday but is the 15th.
	fifteenth := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)
	if !domDowMatches(s, fifteenth) {
		t.Fatalf("expected the 15th to match via the day-of-month branch of the OR rule")
	}
}
