package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"httpcron/internal/crontask"
	"httpcron/internal/task/engine"
	logx "httpcron/pkg/logx"
)

func New(cfg Config, eng Enqueuer, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:    cfg,
		log:    log,
		engine: eng,
		defs:   map[string]*scheduleDef{},
		warn:   map[string]*rate.Sometimes{},
	}
}

// Enabled reports the current config flag.
func (s *Service) Enabled() bool {
	s.mu.Lock()
	en := s.cfg.Enabled
	s.mu.Unlock()
	return en
}

// Apply swaps the config. A timezone or spread change re-registers every
// job on a fresh cron instance.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	oldTZ := strings.TrimSpace(s.cfg.Timezone)
	newTZ := strings.TrimSpace(cfg.Timezone)
	spreadChanged := s.cfg.StartupSpread != cfg.StartupSpread
	s.cfg = cfg

	if s.c == nil {
		return
	}
	if oldTZ != newTZ || spreadChanged {
		s.restartLocked()
	}
}

// Start starts triggering. It is a no-op when disabled or already started.
func (s *Service) Start(ctx context.Context) {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return
	}
	if !s.cfg.Enabled {
		s.log.Info("scheduler disabled")
		return
	}

	loc := s.loadLocationLocked()
	s.loc = loc
	s.c = cron.New(cron.WithLocation(loc))
	for _, name := range s.namesLocked() {
		s.addCronLocked(s.defs[name])
	}
	s.c.Start()
	s.log.Info("scheduler started", logx.String("tz", loc.String()), logx.Int("jobs", len(s.defs)))
}

// Stop stops triggering and waits for running cron callbacks, bounded by
// ctx. Registered jobs are kept so a later Start resumes them.
func (s *Service) Stop(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()

	s.mu.Lock()
	c := s.c
	s.c = nil
	for _, d := range s.defs {
		d.entryID = 0
	}
	s.mu.Unlock()

	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
	s.log.Info("scheduler stopped", logx.Duration("took", time.Since(start)))
}

// Add registers task under name, replacing any job with the same name.
// A task whose period is zero is refused and never reaches a timer.
func (s *Service) Add(name string, task *crontask.Task) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: name required", ErrInvalidJob)
	}
	if task == nil {
		return fmt.Errorf("%w: %s: task is nil", ErrInvalidJob, name)
	}
	if task.Period() <= 0 {
		s.log.Error("cron job not scheduled: zero period",
			logx.String("job", name),
			logx.String("schedule", task.Schedule()),
		)
		return fmt.Errorf("%w: %s: %q", ErrDegeneratePeriod, name, task.Schedule())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertLocked(name, task)
	return nil
}

func (s *Service) upsertLocked(name string, task *crontask.Task) {
	guard := &engine.Guard{}
	if prev, ok := s.defs[name]; ok {
		// Keep the guard so a run of the old definition still blocks.
		guard = prev.guard
		s.unregisterLocked(prev)
	}
	d := &scheduleDef{
		name:        name,
		task:        task,
		fingerprint: fingerprint(task),
		guard:       guard,
	}
	s.defs[name] = d
	if s.c != nil {
		s.addCronLocked(d)
		s.log.Debug("job registered",
			logx.String("job", name),
			logx.String("url", task.URL()),
			logx.Duration("period", task.Period()),
			logx.Duration("startup_spread", d.startupSpread),
		)
	}
}

// Remove unschedules the job with the given name and reports whether it existed.
func (s *Service) Remove(name string) bool {
	name = strings.TrimSpace(name)
	s.mu.Lock()
	d, ok := s.defs[name]
	if ok {
		s.unregisterLocked(d)
		delete(s.defs, name)
		s.forgetWarn(name)
	}
	s.mu.Unlock()
	if ok {
		s.log.Debug("job removed", logx.String("job", name))
	}
	return ok
}

// Sync reconciles the registered jobs with tasks. Jobs whose definition is
// unchanged keep their timer. Tasks that cannot be scheduled are reported in
// the returned error and left out.
func (s *Service) Sync(tasks map[string]*crontask.Task) (SyncResult, error) {
	var res SyncResult
	var errs []error

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, name := range s.namesLocked() {
		if _, keep := tasks[name]; keep {
			continue
		}
		s.unregisterLocked(s.defs[name])
		delete(s.defs, name)
		s.forgetWarn(name)
		res.Removed = append(res.Removed, name)
	}

	names := make([]string, 0, len(tasks))
	for name := range tasks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		task := tasks[name]
		if task == nil || task.Period() <= 0 {
			schedule := ""
			if task != nil {
				schedule = task.Schedule()
			}
			s.log.Error("cron job not scheduled: zero period", logx.String("job", name), logx.String("schedule", schedule))
			errs = append(errs, fmt.Errorf("%w: %s: %q", ErrDegeneratePeriod, name, schedule))
			if prev, ok := s.defs[name]; ok {
				s.unregisterLocked(prev)
				delete(s.defs, name)
				s.forgetWarn(name)
				res.Removed = append(res.Removed, name)
			}
			continue
		}
		prev, exists := s.defs[name]
		if exists && prev.fingerprint == fingerprint(task) {
			continue
		}
		s.upsertLocked(name, task)
		if exists {
			res.Updated = append(res.Updated, name)
		} else {
			res.Added = append(res.Added, name)
		}
	}

	if res.Changed() {
		s.log.Info("jobs synced",
			logx.Any("added", res.Added),
			logx.Any("updated", res.Updated),
			logx.Any("removed", res.Removed),
		)
	}
	return res, errors.Join(errs...)
}

// RunNow enqueues one tick of the named job outside its schedule.
func (s *Service) RunNow(name string) error {
	s.mu.Lock()
	d, ok := s.defs[strings.TrimSpace(name)]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return s.enqueue(d)
}

// Task returns the task registered under name.
func (s *Service) Task(name string) (*crontask.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.defs[name]
	if !ok {
		return nil, false
	}
	return d.task, true
}

func (s *Service) enqueue(d *scheduleDef) error {
	if s.engine == nil {
		return engine.ErrNotRunning
	}
	err := s.engine.Enqueue(engine.Tick{
		Job:   d.name,
		Run:   d.task.RunContext,
		Guard: d.guard,
	})
	if err != nil {
		s.reportEnqueueError(d.name, err)
	}
	return err
}

// addCronLocked hands d to cron. Call with s.mu held and s.c non-nil.
func (s *Service) addCronLocked(d *scheduleDef) {
	job := cron.FuncJob(func() { _ = s.enqueue(d) })

	loc := s.loc
	if loc == nil {
		loc = time.Local
	}
	var sched cron.Schedule = cron.Every(d.task.Period())
	d.startupSpread = 0
	if s.cfg.StartupSpread {
		sched, d.startupSpread = makeIntervalScheduleWithSpread(d.task.Period(), time.Now().In(loc), d.name)
	}
	d.entryID = s.c.Schedule(sched, job)
}

func (s *Service) unregisterLocked(d *scheduleDef) {
	if s.c != nil && d.entryID != 0 {
		s.c.Remove(d.entryID)
	}
	d.entryID = 0
}

func (s *Service) restartLocked() {
	if s.c != nil {
		<-s.c.Stop().Done()
	}
	loc := s.loadLocationLocked()
	s.loc = loc
	s.c = cron.New(cron.WithLocation(loc))
	for _, name := range s.namesLocked() {
		s.addCronLocked(s.defs[name])
	}
	s.c.Start()
	s.log.Info("scheduler restarted", logx.String("tz", loc.String()), logx.Int("jobs", len(s.defs)))
}

func (s *Service) loadLocationLocked() *time.Location {
	tz := strings.TrimSpace(s.cfg.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("invalid timezone; falling back to Local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}

func (s *Service) namesLocked() []string {
	names := make([]string, 0, len(s.defs))
	for name := range s.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func fingerprint(t *crontask.Task) string {
	return fmt.Sprintf("%s\x00%s\x00%s\x00%d", t.URL(), t.Description(), t.Schedule(), t.TimeoutMillis())
}
