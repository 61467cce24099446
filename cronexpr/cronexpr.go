// Package cronexpr validates and evaluates cron recurrence rules and
// computes the next qualifying instant after a reference time.
//
// An expression has 5 whitespace-separated fields — minute, hour,
// day-of-month, month, day-of-week — or 6 fields where the leading
// seconds field is accepted but ignored for scheduling. Each field is
// one of `*`, `*/step`, `a-b`, a comma-separated integer list, or a
// single integer. Day-of-week accepts 0 and 7 for Sunday.
//
// Matching requires minute, hour, day-of-month, month, and day-of-week
// to all match (AND semantics, including day-of-week — this deliberately
// diverges from the POSIX convention of OR-ing day-of-month and
// day-of-week when both are restricted). All matching happens in UTC.
package cronexpr

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// fieldSpec describes the allowed value range of one scheduling field.
type fieldSpec struct {
	name string
	min  int
	max  int
}

var fieldSpecs = [5]fieldSpec{
	{"minute", 0, 59},
	{"hour", 0, 23},
	{"day-of-month", 1, 31},
	{"month", 1, 12},
	{"day-of-week", 0, 7}, // 7 is normalized to 0 (Sunday)
}

// Expression is a parsed, immutable cron rule. Safe for concurrent use.
type Expression struct {
	raw string

	// One bitmask per scheduling field; bit n set means value n matches.
	minute uint64
	hour   uint64
	dom    uint64
	month  uint64
	dow    uint64
}

// String returns the original expression text.
func (e *Expression) String() string { return e.raw }

// Parse parses a 5- or 6-field cron expression. A 6th leading seconds
// field is accepted and discarded.
func Parse(expr string) (*Expression, error) {
	fields := strings.Fields(expr)
	switch len(fields) {
	case 5:
	case 6:
		fields = fields[1:] // ignore seconds
	default:
		return nil, fmt.Errorf("cronexpr: expected 5 or 6 fields, got %d in %q", len(fields), expr)
	}

	e := &Expression{raw: expr}
	masks := [5]*uint64{&e.minute, &e.hour, &e.dom, &e.month, &e.dow}
	for i, f := range fields {
		mask, err := parseField(f, fieldSpecs[i])
		if err != nil {
			return nil, err
		}
		*masks[i] = mask
	}

	// Day-of-week: fold 7 onto 0 so both mean Sunday.
	if e.dow&(1<<7) != 0 {
		e.dow |= 1
		e.dow &^= 1 << 7
	}

	return e, nil
}

// Validate checks that expr is a syntactically valid cron expression.
// It returns the parse error, nil for a valid expression.
func Validate(expr string) error {
	_, err := Parse(expr)
	return err
}

// parseField builds the value bitmask for a single field.
func parseField(f string, spec fieldSpec) (uint64, error) {
	if f == "*" {
		return rangeMask(spec.min, spec.max), nil
	}

	if step, ok := strings.CutPrefix(f, "*/"); ok {
		n, err := strconv.Atoi(step)
		if err != nil || n <= 0 || n > spec.max {
			return 0, fmt.Errorf("cronexpr: invalid step %q in %s field", f, spec.name)
		}
		var mask uint64
		for v := spec.min; v <= spec.max; v += n {
			mask |= 1 << v
		}
		return mask, nil
	}

	if a, b, ok := strings.Cut(f, "-"); ok {
		lo, errA := strconv.Atoi(a)
		hi, errB := strconv.Atoi(b)
		if errA != nil || errB != nil || lo > hi || lo < spec.min || hi > spec.max {
			return 0, fmt.Errorf("cronexpr: invalid range %q in %s field", f, spec.name)
		}
		return rangeMask(lo, hi), nil
	}

	if strings.Contains(f, ",") {
		var mask uint64
		for _, part := range strings.Split(f, ",") {
			v, err := strconv.Atoi(part)
			if err != nil || v < spec.min || v > spec.max {
				return 0, fmt.Errorf("cronexpr: invalid list value %q in %s field", part, spec.name)
			}
			mask |= 1 << v
		}
		return mask, nil
	}

	v, err := strconv.Atoi(f)
	if err != nil || v < spec.min || v > spec.max {
		return 0, fmt.Errorf("cronexpr: invalid value %q in %s field", f, spec.name)
	}
	return 1 << v, nil
}

func rangeMask(lo, hi int) uint64 {
	var mask uint64
	for v := lo; v <= hi; v++ {
		mask |= 1 << v
	}
	return mask
}

// maxScanMinutes bounds the minute-by-minute search in Next. Roughly 69
// days; an expression that never matches within the window degrades to a
// one-minute fallback instead of looping forever.
const maxScanMinutes = 100_000

// Matches reports whether the instant t (evaluated in UTC, at minute
// granularity) satisfies every field of the expression.
func (e *Expression) Matches(t time.Time) bool {
	t = t.UTC()

	dow := int(t.Weekday()) // 0 = Sunday, matching the folded mask
	return e.minute&(1<<t.Minute()) != 0 &&
		e.hour&(1<<t.Hour()) != 0 &&
		e.dom&(1<<t.Day()) != 0 &&
		e.month&(1<<int(t.Month())) != 0 &&
		e.dow&(1<<dow) != 0
}

// Next returns the earliest instant strictly after from at which the
// expression matches. The reference instant is truncated to the minute
// and the scan starts one minute later, so an instant that itself matches
// is never returned. If no match is found within maxScanMinutes the
// fallback from+1m is returned, guaranteeing termination.
func (e *Expression) Next(from time.Time) time.Time {
	t := from.UTC().Truncate(time.Minute).Add(time.Minute)
	for range maxScanMinutes {
		if e.Matches(t) {
			return t
		}
		t = t.Add(time.Minute)
	}
	return from.UTC().Add(time.Minute)
}

// Next is the degrading form of Expression.Next: an unparsable expression
// yields the fallback from+1m rather than an error, so a misconfigured
// schedule re-evaluates frequently instead of crashing its dispatcher.
func Next(expr string, from time.Time) time.Time {
	e, err := Parse(expr)
	if err != nil {
		return from.UTC().Add(time.Minute)
	}
	return e.Next(from)
}
