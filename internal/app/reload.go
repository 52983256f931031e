package app

import (
	"context"
	"strings"
	"time"

	"httpcron/internal/config"
	logx "httpcron/pkg/logx"
)

// followConfig applies every committed config until c is done. A burst of
// commits is applied once, as its last config.
func (a *App) followConfig(c context.Context, applied *config.Config, updates chan *config.Config) {
	defer a.cfgm.Unsubscribe(updates)
	for {
		var next *config.Config
		select {
		case <-c.Done():
			return
		case cfg, ok := <-updates:
			if !ok {
				return
			}
			next = newest(cfg, updates)
		}
		if next == nil {
			continue
		}
		a.applyConfig(c, applied, next)
		applied = next
	}
}

// newest drains whatever is already buffered in updates and returns the
// last non-nil config seen, starting from cfg.
func newest(cfg *config.Config, updates <-chan *config.Config) *config.Config {
	for {
		select {
		case more, ok := <-updates:
			if !ok {
				return cfg
			}
			if more != nil {
				cfg = more
			}
		default:
			return cfg
		}
	}
}

// syncJobs reconciles the scheduler with cfg.Jobs. Jobs that cannot be
// scheduled are reported in the error; the rest are applied.
func (a *App) syncJobs(cfg *config.Config) error {
	tasks, err := config.BuildTasks(cfg, a.log.With(logx.String("comp", "crontask")))
	if err != nil {
		return err
	}
	_, err = a.sched.Sync(tasks)
	a.metrics.SetJobs(len(a.sched.Snapshot().Jobs))
	return err
}

func (a *App) applyConfig(c context.Context, prev, next *config.Config) {
	sections, fields := config.SummarizeChange(prev, next)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	a.sd.Reloading()
	defer func() {
		a.sd.Ready()
		a.sd.Status(a.statusLine())
	}()

	a.logs.Apply(mapLoggingConfig(next))

	schedWas, engWas := a.sched.Enabled(), a.engine.Enabled()
	engCfg, err := mapEngineConfig(next)
	if err != nil {
		a.log.Warn("invalid engine config; keeping previous", logx.Err(err))
		engCfg = a.engine.Config()
	} else {
		a.engine.Apply(c, engCfg)
	}
	a.sched.Apply(mapSchedulerConfig(next))

	if err := a.syncJobs(next); err != nil {
		a.log.Warn("some jobs were not scheduled", logx.Err(err))
	}

	// Stop the scheduler before the engine it feeds; start in reverse.
	schedOn := next.Scheduler.Enabled
	if schedWas && !schedOn {
		a.log.Info("scheduler disabled by reload")
		a.stopWithin(c, 3*time.Second, a.sched.Stop)
	}
	switch {
	case engWas && !engCfg.Enabled:
		a.log.Info("task engine disabled by reload")
		a.stopWithin(c, 3*time.Second, a.engine.Stop)
	case !engWas && engCfg.Enabled:
		a.log.Info("task engine enabled by reload")
		a.engine.Start(c)
	}
	if !schedWas && schedOn {
		a.log.Info("scheduler enabled by reload")
		a.sched.Start(c)
	}

	a.status.Reconfigure(c, mapStatusConfig(next))

	fields = append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, fields...)
	a.log.Info("config reloaded", fields...)
}

func (a *App) stopWithin(c context.Context, limit time.Duration, stop func(context.Context)) {
	ctx, cancel := context.WithTimeout(c, limit)
	defer cancel()
	stop(ctx)
}
