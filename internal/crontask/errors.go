package crontask

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSchedule reports an expression that does not follow
	// "every <positive integer> <unit>".
	ErrInvalidSchedule = errors.New("invalid schedule")
	// ErrUnsupportedUnit reports a well-formed expression whose unit is not
	// hours, minutes or seconds.
	ErrUnsupportedUnit = errors.New("unsupported schedule unit")
	ErrInvalidTimeout  = errors.New("timeout must be >= 0")
)

// ScheduleError carries the offending expression.
type ScheduleError struct {
	Expr string
	Err  error
}

func (e *ScheduleError) Error() string { return fmt.Sprintf("schedule %q: %v", e.Expr, e.Err) }
func (e *ScheduleError) Unwrap() error { return e.Err }

func scheduleErr(expr string, err error) error { return &ScheduleError{Expr: expr, Err: err} }
