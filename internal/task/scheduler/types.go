package scheduler

import (
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"httpcron/internal/crontask"
	"httpcron/internal/task/engine"
	logx "httpcron/pkg/logx"
)

var (
	ErrDegeneratePeriod = errors.New("schedule has a zero period")
	ErrUnknownJob       = errors.New("unknown job")
	ErrInvalidJob       = errors.New("invalid job")
)

// Config controls the scheduler (trigger) service.
type Config struct {
	Enabled  bool
	Timezone string // IANA TZ, e.g. "Europe/Berlin"

	// StartupSpread delays each job's first fire by a random amount of up to
	// min(period, 30s).
	StartupSpread bool
}

// Enqueuer is the part of the task engine the scheduler needs.
type Enqueuer interface {
	Enqueue(t engine.Tick) error
}

type scheduleDef struct {
	name          string
	task          *crontask.Task
	fingerprint   string
	entryID       cron.EntryID
	startupSpread time.Duration
	guard         *engine.Guard
}

type Service struct {
	mu sync.Mutex

	log logx.Logger
	cfg Config
	loc *time.Location

	engine Enqueuer

	c    *cron.Cron
	defs map[string]*scheduleDef

	warnMu sync.Mutex
	warn   map[string]*rate.Sometimes // job name -> enqueue warning throttle
}

// JobInfo describes one registered job.
type JobInfo struct {
	Name          string        `json:"name"`
	URL           string        `json:"url"`
	Description   string        `json:"description,omitempty"`
	Schedule      string        `json:"schedule"`
	Period        time.Duration `json:"period"`
	Timeout       time.Duration `json:"timeout"`
	StartupSpread time.Duration `json:"startup_spread,omitempty"`
	Running       bool          `json:"running"`
	Next          time.Time     `json:"next,omitzero"`
	Prev          time.Time     `json:"prev,omitzero"`
}

type Snapshot struct {
	Enabled  bool      `json:"enabled"`
	Started  bool      `json:"started"`
	Timezone string    `json:"timezone"`
	Jobs     []JobInfo `json:"jobs"`
}

// SyncResult lists what a Sync changed, by job name.
type SyncResult struct {
	Added   []string
	Updated []string
	Removed []string
}

// Changed reports whether the sync touched any job.
func (r SyncResult) Changed() bool {
	return len(r.Added)+len(r.Updated)+len(r.Removed) > 0
}
