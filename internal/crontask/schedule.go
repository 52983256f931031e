package crontask

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"
)

// Unit is the time unit of a schedule expression.
type Unit int

const (
	UnitUnknown Unit = iota
	UnitHours
	UnitMinutes
	UnitSeconds
)

func (u Unit) String() string {
	switch u {
	case UnitHours:
		return "hours"
	case UnitMinutes:
		return "minutes"
	case UnitSeconds:
		return "seconds"
	default:
		return "unknown"
	}
}

// Millis returns the number of milliseconds in one unit (0 for UnitUnknown).
func (u Unit) Millis() int64 {
	switch u {
	case UnitHours:
		return 3_600_000
	case UnitMinutes:
		return 60_000
	case UnitSeconds:
		return 1_000
	default:
		return 0
	}
}

// ParseUnit maps the exact words "hours", "minutes" and "seconds".
func ParseUnit(word string) (Unit, bool) {
	switch word {
	case "hours":
		return UnitHours, true
	case "minutes":
		return UnitMinutes, true
	case "seconds":
		return UnitSeconds, true
	default:
		return UnitUnknown, false
	}
}

// Interval is a parsed "every N <unit>" expression.
type Interval struct {
	Count int64
	Unit  Unit
}

func (i Interval) Millis() int64 { return i.Count * i.Unit.Millis() }

func (i Interval) Period() time.Duration { return time.Duration(i.Millis()) * time.Millisecond }

func (i Interval) String() string { return fmt.Sprintf("every %d %s", i.Count, i.Unit) }

var reSchedule = regexp.MustCompile(`^every (?P<count>[^ ]+) (?P<unit>[^ ]+)$`)

var (
	idxCount = reSchedule.SubexpIndex("count")
	idxUnit  = reSchedule.SubexpIndex("unit")
)

// ParseSchedule parses "every N hours|minutes|seconds".
//
// Words are separated by exactly one space; nothing else is accepted.
// A malformed expression or a count that is not a positive integer yields
// ErrInvalidSchedule. An unknown unit yields ErrUnsupportedUnit together
// with the parsed count and UnitUnknown, so callers can decide whether to
// degrade to a zero period.
func ParseSchedule(expr string) (Interval, error) {
	m := reSchedule.FindStringSubmatch(expr)
	if m == nil {
		return Interval{}, scheduleErr(expr, ErrInvalidSchedule)
	}

	n, err := strconv.ParseInt(m[idxCount], 10, 64)
	if err != nil {
		return Interval{}, scheduleErr(expr, fmt.Errorf("%w: count %q: %v", ErrInvalidSchedule, m[idxCount], err))
	}
	if n <= 0 {
		return Interval{}, scheduleErr(expr, fmt.Errorf("%w: count must be > 0", ErrInvalidSchedule))
	}

	unit, ok := ParseUnit(m[idxUnit])
	if !ok {
		return Interval{Count: n}, scheduleErr(expr, fmt.Errorf("%w %q", ErrUnsupportedUnit, m[idxUnit]))
	}
	// The period must fit in a time.Duration.
	if n > math.MaxInt64/(unit.Millis()*int64(time.Millisecond)) {
		return Interval{}, scheduleErr(expr, fmt.Errorf("%w: period overflows", ErrInvalidSchedule))
	}
	return Interval{Count: n, Unit: unit}, nil
}
