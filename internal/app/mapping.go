package app

import (
	"strings"

	"httpcron/internal/config"
	"httpcron/internal/status"
	"httpcron/internal/task/engine"
	"httpcron/internal/task/scheduler"
	logx "httpcron/pkg/logx"
)

func mapLoggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

// mapEngineConfig fills engine defaults. The engine follows
// scheduler.enabled unless engine.enabled is set.
func mapEngineConfig(cfg *config.Config) (engine.Config, error) {
	out := engine.Config{
		Enabled:     cfg.Scheduler.Enabled,
		Workers:     2,
		QueueSize:   256,
		HistorySize: 200,
	}
	e := cfg.Engine
	if e == nil {
		return out, nil
	}
	if e.Enabled != nil {
		out.Enabled = *e.Enabled
	}
	if e.Workers > 0 {
		out.Workers = e.Workers
	}
	if e.QueueSize > 0 {
		out.QueueSize = e.QueueSize
	}
	if e.HistorySize > 0 {
		out.HistorySize = e.HistorySize
	}
	out.RatePerSec = e.RatePerSec
	out.Burst = e.Burst
	if out.RatePerSec > 0 && out.Burst <= 0 {
		out.Burst = 1
	}

	var err error
	if out.DefaultTimeout, err = config.ParseDurationField("engine.default_timeout", e.DefaultTimeout); err != nil {
		return engine.Config{}, err
	}
	if out.MaxQueueDelay, err = config.ParseDurationField("engine.max_queue_delay", e.MaxQueueDelay); err != nil {
		return engine.Config{}, err
	}
	return out, nil
}

func mapSchedulerConfig(cfg *config.Config) scheduler.Config {
	return scheduler.Config{
		Enabled:       cfg.Scheduler.Enabled,
		Timezone:      strings.TrimSpace(cfg.Scheduler.Timezone),
		StartupSpread: cfg.Scheduler.StartupSpread,
	}
}

func mapStatusConfig(cfg *config.Config) status.Config {
	addr := strings.TrimSpace(cfg.Status.Addr)
	if addr == "" {
		addr = config.DefaultStatusAddr
	}
	return status.Config{
		Enabled: cfg.Status.Enabled,
		Addr:    addr,
		Pprof:   cfg.Status.Pprof,
	}
}
