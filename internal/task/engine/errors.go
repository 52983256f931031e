package engine

import "errors"

var (
	ErrDisabled    = errors.New("engine is disabled")
	ErrNotRunning  = errors.New("engine is not running")
	ErrQueueFull   = errors.New("tick queue is full")
	ErrBusy        = errors.New("previous tick of the job is still running")
	ErrInvalidTick = errors.New("invalid tick")
)

// Drop reasons reported in Outcome.Err for ticks that never ran.
const (
	DropQueueFull = "queue_full"
	DropStale     = "stale_queue_delay"
)
