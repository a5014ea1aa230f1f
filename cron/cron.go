// Package cron implements the 5-field cron schedule parser of spec section
// 4.7, plus kv-backed schedule bookkeeping.
//
// No example repo in the retrieval pack imports a cron library (no
// robfig/cron or equivalent anywhere in go.mod or other_examples/), so
// this is hand-written against the spec, styled after the teacher's other
// small stdlib-only parsers such as provider.DetectProvider's substring
// pattern matching — see DESIGN.md's domain-stack table for the explicit
// no-grounding disclosure.
package cron

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/arcwave/relaycore/kv"
)

// field indices, minute hour dom month dow.
const (
	fieldMinute = iota
	fieldHour
	fieldDOM
	fieldMonth
	fieldDOW
)

var fieldBounds = [5][2]int{
	{0, 59},
	{0, 23},
	{1, 31},
	{1, 12},
	{0, 7},
}

// presetAliases are the common cron shorthand forms.
var presetAliases = map[string]string{
	"@yearly":   "0 0 1 1 *",
	"@annually": "0 0 1 1 *",
	"@monthly":  "0 0 1 * *",
	"@weekly":   "0 0 * * 0",
	"@daily":    "0 0 * * *",
	"@midnight": "0 0 * * *",
	"@hourly":   "0 * * * *",
}

// Schedule is a parsed 5-field cron expression.
type Schedule struct {
	expr   string
	fields [5]fieldMatcher
}

// fieldMatcher reports whether a concrete field value satisfies one cron
// field's spec (the union of its comma-separated terms).
type fieldMatcher struct {
	terms []term
}

type term struct {
	start, end, step int
	wildcard         bool
}

func (m fieldMatcher) matches(v int) bool {
	for _, t := range m.terms {
		if t.wildcard {
			return true
		}
		if v < t.start || v > t.end {
			continue
		}
		if (v-t.start)%t.step == 0 {
			return true
		}
	}
	return false
}

// Parse parses a 5-field cron expression or a recognized @-preset alias.
func Parse(expr string) (*Schedule, error) {
	raw := strings.TrimSpace(expr)
	if alias, ok := presetAliases[raw]; ok {
		raw = alias
	}

	parts := strings.Fields(raw)
	if len(parts) != 5 {
		return nil, fmt.Errorf("cron: expected 5 fields, got %d in %q", len(parts), expr)
	}

	var s Schedule
	s.expr = expr
	for i, part := range parts {
		m, err := parseField(part, fieldBounds[i][0], fieldBounds[i][1])
		if err != nil {
			return nil, fmt.Errorf("cron: field %d (%q): %w", i, part, err)
		}
		s.fields[i] = m
	}
	return &s, nil
}

func parseField(field string, lo, hi int) (fieldMatcher, error) {
	var m fieldMatcher
	for _, piece := range strings.Split(field, ",") {
		t, err := parseTerm(piece, lo, hi)
		if err != nil {
			return m, err
		}
		m.terms = append(m.terms, t)
	}
	return m, nil
}

func parseTerm(piece string, lo, hi int) (term, error) {
	step := 1
	if idx := strings.Index(piece, "/"); idx >= 0 {
		s, err := strconv.Atoi(piece[idx+1:])
		if err != nil || s <= 0 {
			return term{}, fmt.Errorf("invalid step %q", piece)
		}
		step = s
		piece = piece[:idx]
	}

	switch {
	case piece == "*":
		if step == 1 {
			return term{wildcard: true}, nil
		}
		return term{start: lo, end: hi, step: step}, nil
	case strings.Contains(piece, "-"):
		bounds := strings.SplitN(piece, "-", 2)
		start, err1 := strconv.Atoi(bounds[0])
		end, err2 := strconv.Atoi(bounds[1])
		if err1 != nil || err2 != nil || start > end || start < lo || end > hi {
			return term{}, fmt.Errorf("invalid range %q", piece)
		}
		return term{start: start, end: end, step: step}, nil
	default:
		v, err := strconv.Atoi(piece)
		if err != nil || v < lo || v > hi {
			return term{}, fmt.Errorf("invalid value %q", piece)
		}
		return term{start: v, end: v, step: step}, nil
	}
}

// maxLookaheadDays bounds getNextCronDate so a malformed or never-matching
// expression (e.g. Feb 30) fails fast instead of looping forever.
const maxLookaheadDays = 366

// Next returns the next time after `after` (exclusive) that the schedule
// fires, truncated to whole minutes. Returns an error if no match occurs
// within maxLookaheadDays.
func (s *Schedule) Next(after time.Time) (time.Time, error) {
	t := after.Truncate(time.Minute).Add(time.Minute)
	deadline := after.AddDate(0, 0, maxLookaheadDays)
	for t.Before(deadline) {
		if s.fields[fieldMonth].matches(int(t.Month())) &&
			domDowMatches(s, t) &&
			s.fields[fieldHour].matches(t.Hour()) &&
			s.fields[fieldMinute].matches(t.Minute()) {
			return t, nil
		}
		t = t.Add(time.Minute)
	}
	return time.Time{}, fmt.Errorf("cron: no matching time within %d days for %q", maxLookaheadDays, s.expr)
}

// domDowMatches applies cron's day-of-month/day-of-week OR rule: when both
// fields are restricted (non-wildcard), a date matching either satisfies
// the schedule; when only one is restricted, that one alone governs.
func domDowMatches(s *Schedule, t time.Time) bool {
	domField := s.fields[fieldDOM]
	dowField := s.fields[fieldDOW]
	domWild := isWildcard(domField)
	dowWild := isWildcard(dowField)
	// Sunday is both 0 and 7 in the day-of-week field.
	wd := int(t.Weekday())
	dowMatch := dowField.matches(wd) || (wd == 0 && dowField.matches(7))

	switch {
	case domWild && dowWild:
		return true
	case domWild:
		return dowMatch
	case dowWild:
		return domField.matches(t.Day())
	default:
		return domField.matches(t.Day()) || dowMatch
	}
}

func isWildcard(m fieldMatcher) bool {
	for _, t := range m.terms {
		if t.wildcard {
			return true
		}
	}
	return false
}

// minScheduleFrequency is the 5-minute floor spec 4.7 requires.
const minScheduleFrequency = 5 * time.Minute

// ValidateFrequency checks that a schedule does not fire more often than
// once every 5 minutes, by comparing its first two occurrences after now.
func ValidateFrequency(s *Schedule, now time.Time) error {
	first, err := s.Next(now)
	if err != nil {
		return err
	}
	second, err := s.Next(first)
	if err != nil {
		return err
	}
	gap := second.Sub(first)
	if gap < minScheduleFrequency {
		return fmt.Errorf("schedule frequency too short: fires every %s, minimum is %s", gap, minScheduleFrequency)
	}
	return nil
}

// ValidateIntervalMs checks a raw millisecond interval (as opposed to a
// parsed cron Schedule) against the same 5-minute floor, for callers that
// configure a polling/fire interval directly rather than via a cron
// expression.
func ValidateIntervalMs(ms int64) error {
	interval := time.Duration(ms) * time.Millisecond
	if interval < minScheduleFrequency {
		return fmt.Errorf("schedule interval too short: %s, minimum is %s", interval, minScheduleFrequency)
	}
	return nil
}

const kvBucket = "cron_schedules"

// entry is the persisted bookkeeping record for a named schedule.
type entry struct {
	Expr         string    `json:"expr"`
	LastFiredAt  time.Time `json:"last_fired_at"`
	NextFireAt   time.Time `json:"next_fire_at"`
}

// Store tracks named schedules' last/next fire times in kv, so a process
// restart does not immediately re-fire a schedule that already ran.
type Store struct {
	kv *kv.Store
}

// NewStore wraps a kv.Store for cron bookkeeping.
func NewStore(store *kv.Store) *Store {
	return &Store{kv: store}
}

// RecordFire persists that name's schedule fired at `at`, computing and
// storing its next fire time from schedule.
func (st *Store) RecordFire(name string, schedule *Schedule, at time.Time) error {
	next, err := schedule.Next(at)
	if err != nil {
		return err
	}
	return st.kv.PutJSON(kvBucket, name, entry{
		Expr:        schedule.expr,
		LastFiredAt: at,
		NextFireAt:  next,
	})
}

// DueSince reports whether name's schedule is due to fire again, given it
// has no record yet (always due) or its stored NextFireAt has passed.
func (st *Store) DueSince(name string, now time.Time) (bool, error) {
	var e entry
	found, err := st.kv.GetJSON(kvBucket, name, &e)
	if err != nil {
		return false, err
	}
	if !found {
		return true, nil
	}
	return !now.Before(e.NextFireAt), nil
}
