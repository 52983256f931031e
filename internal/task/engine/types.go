package engine

import (
	"context"
	"sync/atomic"
	"time"
)

// Config controls how ticks are executed.
type Config struct {
	Enabled   bool
	Workers   int
	QueueSize int

	// DefaultTimeout bounds ticks that carry no Timeout of their own. 0
	// leaves them bounded only by the HTTP client timeout of the job.
	DefaultTimeout time.Duration

	// MaxQueueDelay drops ticks that waited in the queue longer than this.
	// 0 keeps every tick.
	MaxQueueDelay time.Duration

	HistorySize int

	// RatePerSec caps how many ticks start per second across all jobs.
	// 0 disables the limiter.
	RatePerSec float64
	Burst      int
}

// Tick is one scheduled invocation of a job.
type Tick struct {
	Job     string
	Timeout time.Duration
	Run     func(ctx context.Context) error

	// Guard is held from enqueue until Run returns. Ticks of the same job
	// share one Guard; nil means the engine keeps one per Job.
	Guard *Guard
}

// Guard keeps a job from overlapping with itself: a tick is refused with
// ErrBusy while the previous one is queued or running.
type Guard struct {
	held atomic.Bool
}

func (g *Guard) acquire() bool { return g.held.CompareAndSwap(false, true) }

func (g *Guard) release() { g.held.Store(false) }

// Busy reports whether a tick of the job is queued or running.
func (g *Guard) Busy() bool { return g != nil && g.held.Load() }

// Outcome describes one tick. It is the payload of every engine event and
// the element of the history ring.
type Outcome struct {
	Seq     uint64        `json:"seq"`
	Job     string        `json:"job"`
	Queued  time.Time     `json:"queued"`
	Started time.Time     `json:"started,omitzero"`
	Waited  time.Duration `json:"waited"`
	Took    time.Duration `json:"took"`
	Err     string        `json:"error,omitempty"`
}

// Snapshot is the engine state served on the status API.
type Snapshot struct {
	Enabled   bool `json:"enabled"`
	Running   bool `json:"running"`
	Workers   int  `json:"workers"`
	Queued    int  `json:"queued"`
	QueueCap  int  `json:"queue_cap"`
	Executing int  `json:"executing"`

	Skipped          uint64 `json:"skipped"`
	DroppedQueueFull uint64 `json:"dropped_queue_full"`
	DroppedStale     uint64 `json:"dropped_stale"`

	DefaultTimeout time.Duration `json:"default_timeout"`
	MaxQueueDelay  time.Duration `json:"max_queue_delay"`
	RatePerSec     float64       `json:"rate_per_sec"`

	Recent []Outcome `json:"recent"`
}
