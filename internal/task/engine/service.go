// Package engine executes cron ticks on a bounded worker pool. It owns
// everything about running a tick: queueing, the per-job overlap guard,
// timeouts, the global start rate, and the recent-outcome history.
package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"httpcron/internal/eventbus"
	"httpcron/internal/runtime/supervisor"
	logx "httpcron/pkg/logx"
)

type Service struct {
	log logx.Logger
	bus eventbus.Bus

	mu  sync.Mutex
	cfg Config
	gen *generation // nil while stopped

	guards sync.Map // job name -> *Guard
	seq    atomic.Uint64
	recent history

	executing    atomic.Int64
	skipped      atomic.Uint64
	droppedFull  atomic.Uint64
	droppedStale atomic.Uint64

	warnFull  rate.Sometimes
	warnStale rate.Sometimes
}

// generation is one Start..Stop cycle: its own queue, limiter and workers.
type generation struct {
	queue   chan pending
	limiter *rate.Limiter
	sup     *supervisor.Supervisor
}

type pending struct {
	tick    Tick
	guard   *Guard
	timeout time.Duration
	out     Outcome
}

func New(cfg Config, log logx.Logger, bus eventbus.Bus) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	cfg = withDefaults(cfg)
	s := &Service{
		log:       log,
		bus:       bus,
		cfg:       cfg,
		warnFull:  rate.Sometimes{Interval: 5 * time.Second},
		warnStale: rate.Sometimes{Interval: 5 * time.Second},
	}
	s.recent.setLimit(cfg.HistorySize)
	return s
}

func withDefaults(cfg Config) Config {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 200
	}
	if cfg.RatePerSec > 0 && cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	return cfg
}

func (s *Service) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Enabled
}

// Config returns the active config with defaults filled in.
func (s *Service) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Apply swaps the config. Changes to the pool shape, the limiter or the
// enabled flag restart a running engine; in-flight ticks are canceled.
func (s *Service) Apply(ctx context.Context, cfg Config) {
	cfg = withDefaults(cfg)
	s.recent.setLimit(cfg.HistorySize)

	s.mu.Lock()
	prev := s.cfg
	s.cfg = cfg
	running := s.gen != nil
	s.mu.Unlock()

	reshaped := prev.Workers != cfg.Workers || prev.QueueSize != cfg.QueueSize ||
		prev.RatePerSec != cfg.RatePerSec || prev.Burst != cfg.Burst || prev.Enabled != cfg.Enabled
	if running && reshaped {
		s.Stop(ctx)
		s.Start(ctx)
	}
}

// Start launches the workers under ctx. It does nothing when disabled or
// already running.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.cfg.Enabled || s.gen != nil {
		return
	}

	gen := &generation{
		queue: make(chan pending, s.cfg.QueueSize),
		sup:   supervisor.New(ctx, supervisor.WithLogger(s.log)),
	}
	if s.cfg.RatePerSec > 0 {
		gen.limiter = rate.NewLimiter(rate.Limit(s.cfg.RatePerSec), s.cfg.Burst)
	}
	for i := range s.cfg.Workers {
		gen.sup.GoRestart(fmt.Sprintf("worker.%d", i), func(c context.Context) error {
			s.work(c, gen)
			return c.Err()
		})
	}
	s.gen = gen

	s.log.Info("task engine started",
		logx.Int("workers", s.cfg.Workers),
		logx.Int("queue", s.cfg.QueueSize),
		logx.Float64("rate_per_sec", s.cfg.RatePerSec),
	)
}

// Stop cancels running ticks and waits for the workers, bounded by ctx.
// Ticks still queued are discarded and their guards released.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	gen := s.gen
	s.gen = nil
	s.mu.Unlock()
	if gen == nil {
		return
	}

	gen.sup.Cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = gen.sup.Wait(context.Background())
		for {
			select {
			case p := <-gen.queue:
				p.guard.release()
			default:
				return
			}
		}
	}()

	select {
	case <-done:
		s.log.Info("task engine stopped")
	case <-ctx.Done():
		s.log.Warn("task engine stop timed out", logx.Err(ctx.Err()))
	}
}

// Enqueue queues t without blocking. It returns ErrBusy when the job's
// previous tick has not finished and ErrQueueFull when the queue is full.
func (s *Service) Enqueue(t Tick) error {
	t.Job = strings.TrimSpace(t.Job)
	if t.Job == "" || t.Run == nil {
		return fmt.Errorf("%w: job name and run func are required", ErrInvalidTick)
	}
	guard := t.Guard
	if guard == nil {
		g, _ := s.guards.LoadOrStore(t.Job, &Guard{})
		guard = g.(*Guard)
	}

	// Held for the send so Stop never leaves a tick behind in a queue it
	// has already drained.
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case !s.cfg.Enabled:
		return ErrDisabled
	case s.gen == nil:
		return ErrNotRunning
	}

	out := Outcome{Seq: s.seq.Add(1), Job: t.Job, Queued: time.Now()}
	if !guard.acquire() {
		s.skipped.Add(1)
		s.emit(eventbus.TickSkipped, out)
		return ErrBusy
	}

	timeout := t.Timeout
	if timeout <= 0 {
		timeout = s.cfg.DefaultTimeout
	}
	select {
	case s.gen.queue <- pending{tick: t, guard: guard, timeout: timeout, out: out}:
		return nil
	default:
	}

	guard.release()
	s.droppedFull.Add(1)
	out.Err = DropQueueFull
	s.emit(eventbus.TickDropped, out)
	s.recent.add(out)
	s.warnFull.Do(func() {
		s.log.Warn("tick dropped: queue full",
			logx.String("job", t.Job),
			logx.Int("queue_cap", cap(s.gen.queue)),
			logx.Uint64("dropped_queue_full", s.droppedFull.Load()),
		)
	})
	return ErrQueueFull
}

// Executing is the number of ticks currently running.
func (s *Service) Executing() int { return int(s.executing.Load()) }

func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	cfg := s.cfg
	gen := s.gen
	s.mu.Unlock()

	snap := Snapshot{
		Enabled:          cfg.Enabled,
		Running:          gen != nil,
		Workers:          cfg.Workers,
		Executing:        s.Executing(),
		Skipped:          s.skipped.Load(),
		DroppedQueueFull: s.droppedFull.Load(),
		DroppedStale:     s.droppedStale.Load(),
		DefaultTimeout:   cfg.DefaultTimeout,
		MaxQueueDelay:    cfg.MaxQueueDelay,
		RatePerSec:       cfg.RatePerSec,
		Recent:           s.recent.list(),
	}
	if gen != nil {
		snap.Queued, snap.QueueCap = len(gen.queue), cap(gen.queue)
	}
	return snap
}

func (s *Service) emit(typ string, out Outcome) {
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: typ, Data: out})
	}
}
