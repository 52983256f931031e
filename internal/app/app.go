// Package app wires config, logging, the task engine, the scheduler and the
// status server into one process with hot reload.
package app

import (
	"context"
	"fmt"
	"time"

	"httpcron/internal/config"
	"httpcron/internal/eventbus"
	"httpcron/internal/metrics"
	"httpcron/internal/runtime/supervisor"
	"httpcron/internal/status"
	"httpcron/internal/task/engine"
	"httpcron/internal/task/scheduler"
	logx "httpcron/pkg/logx"
	"httpcron/pkg/systemd"
)

type App struct {
	cfgPath string
	cfgm    *config.Manager

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	engine  *engine.Service
	sched   *scheduler.Service
	metrics *metrics.Collector
	status  *status.Server
	sd      *systemd.Notifier

	sup *supervisor.Supervisor // set by Start
}

// New loads and validates the config at cfgPath and builds every component.
// Nothing runs until Start.
func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	engCfg, err := mapEngineConfig(cfg)
	if err != nil {
		return nil, err
	}

	logs, root := logx.New(mapLoggingConfig(cfg))
	comp := func(name string) logx.Logger { return root.With(logx.String("comp", name)) }

	a := &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     comp("app"),
		logs:    logs,
		bus:     eventbus.New(),
		sd:      systemd.New(comp("systemd")),
	}
	a.engine = engine.New(engCfg, comp("taskengine"), a.bus)
	a.sched = scheduler.New(mapSchedulerConfig(cfg), a.engine, comp("scheduler"))
	a.metrics = metrics.New(a.engine.Executing)
	a.status = status.NewServer(mapStatusConfig(cfg), status.Deps{
		Scheduler: a.sched,
		Engine:    a.engine,
		Gatherer:  a.metrics.Registry(),
	}, comp("status"))
	a.cfgm.SetLogger(comp("config"))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		if _, err := mapEngineConfig(cfg); err != nil {
			return err
		}
		_, err := config.BuildTasks(cfg, logx.Nop())
		return err
	})
	return a, nil
}

func (a *App) Scheduler() *scheduler.Service { return a.sched }

func (a *App) Engine() *engine.Service { return a.engine }

func (a *App) Status() *status.Server { return a.status }

var closedChan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// Done is closed once the run context ends, on Stop or on a fatal error.
// Before Start it is already closed.
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		return closedChan
	}
	return a.sup.Context().Done()
}

// Err is the first fatal error of a background loop, if any.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Start brings the components up in dependency order: engine, jobs,
// scheduler, status. Background loops run until ctx is done or Stop.
func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	run := a.sup.Context()

	a.sup.Go0("metrics.consume", func(c context.Context) { a.metrics.Consume(c, a.bus) })
	a.sup.Go0("eventbus.log", a.traceEvents)

	cfg := a.cfgm.Get()
	if a.engine.Enabled() {
		a.engine.Start(run)
	}
	if err := a.syncJobs(cfg); err != nil {
		a.log.Warn("some jobs were not scheduled", logx.Err(err))
	}
	if a.sched.Enabled() {
		a.sched.Start(run)
	}
	if a.status.Enabled() {
		a.status.Start(run)
	}

	updates := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) { a.followConfig(c, cfg, updates) })
	a.sup.Go("config.watch", a.cfgm.Watch)
	a.sup.Go0("systemd.watchdog", a.sd.Watchdog)

	a.sd.Ready()
	a.sd.Status(a.statusLine())
	a.log.Info("app started",
		logx.String("config", a.cfgPath),
		logx.Int("jobs", len(a.sched.Snapshot().Jobs)),
	)
	return nil
}

func (a *App) statusLine() string {
	snap := a.sched.Snapshot()
	state := "idle"
	if snap.Started {
		state = "scheduling"
	}
	return fmt.Sprintf("%s %d jobs", state, len(snap.Jobs))
}

// traceEvents logs every engine event at trace level.
func (a *App) traceEvents(c context.Context) {
	events, unsub := a.bus.Subscribe(128)
	defer unsub()
	for {
		select {
		case <-c.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if out, ok := e.Data.(engine.Outcome); ok {
				a.log.Trace("event", logx.String("type", e.Type), logx.String("job", out.Job), logx.Uint64("seq", out.Seq), logx.Time("time", e.Time))
			}
		}
	}
}

// Stop shuts the components down in reverse order. Each one gets its own
// time slice so a stuck component cannot hold up the rest.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.sd.Stopping()
	a.sup.Cancel()

	steps := []struct {
		name  string
		limit time.Duration
		run   func(context.Context) error
	}{
		{"scheduler", 2 * time.Second, func(c context.Context) error { a.sched.Stop(c); return nil }},
		{"taskengine", 3 * time.Second, func(c context.Context) error { a.engine.Stop(c); return nil }},
		{"status", time.Second, func(c context.Context) error { a.status.Stop(c); return nil }},
		{"supervisor", 2 * time.Second, a.sup.Wait},
	}
	for _, st := range steps {
		a.shutdownStep(ctx, st.name, st.limit, st.run)
	}

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return a.sup.Err()
}

func (a *App) shutdownStep(ctx context.Context, name string, limit time.Duration, fn func(context.Context) error) {
	began := time.Now()
	c, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	res := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				res <- fmt.Errorf("panic: %v", r)
			}
		}()
		res <- fn(c)
	}()

	select {
	case err := <-res:
		if err != nil {
			a.log.Warn("shutdown step failed", logx.String("step", name), logx.Err(err))
		}
		a.log.Debug("shutdown step done", logx.String("step", name), logx.Duration("took", time.Since(began)))
	case <-c.Done():
		a.log.Warn("shutdown step timed out; moving on", logx.String("step", name), logx.Duration("limit", limit))
	}
}
