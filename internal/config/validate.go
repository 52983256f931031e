package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"httpcron/internal/crontask"
	logx "httpcron/pkg/logx"
)

// Validate checks bounds, durations, the timezone and every job. Job errors
// are collected so one bad entry does not hide the next.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	if _, err := logx.ParseLevel(cfg.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}

	if e := cfg.Engine; e != nil {
		switch {
		case e.Workers < 0:
			return errors.New("engine.workers must be >= 0")
		case e.QueueSize < 0:
			return errors.New("engine.queue_size must be >= 0")
		case e.HistorySize < 0:
			return errors.New("engine.history_size must be >= 0")
		case e.RatePerSec < 0:
			return errors.New("engine.rate_per_sec must be >= 0")
		case e.Burst < 0:
			return errors.New("engine.burst must be >= 0")
		}
		if _, err := ParseDurationField("engine.default_timeout", e.DefaultTimeout); err != nil {
			return err
		}
		if _, err := ParseDurationField("engine.max_queue_delay", e.MaxQueueDelay); err != nil {
			return err
		}
		if cfg.Scheduler.Enabled && e.Enabled != nil && !*e.Enabled {
			return errors.New("engine.enabled cannot be false while scheduler.enabled is true")
		}
	}

	if tz := strings.TrimSpace(cfg.Scheduler.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("scheduler.timezone: invalid %q: %w", tz, err)
		}
	}

	if cfg.Status.Enabled && strings.TrimSpace(cfg.Status.Addr) != "" {
		if _, _, err := net.SplitHostPort(cfg.Status.Addr); err != nil {
			return fmt.Errorf("status.addr: %w", err)
		}
	}

	var errs []error
	seen := make(map[string]int, len(cfg.Jobs))
	for i, j := range cfg.Jobs {
		if err := validateJob(j, cfg.Scheduler.StrictUnits); err != nil {
			errs = append(errs, fmt.Errorf("jobs[%d]: %w", i, err))
		}
		name := j.JobName()
		if prev, dup := seen[name]; dup && name != "" {
			errs = append(errs, fmt.Errorf("jobs[%d]: duplicate name %q (also jobs[%d])", i, name, prev))
			continue
		}
		seen[name] = i
	}
	return errors.Join(errs...)
}

func validateJob(j JobConfig, strict bool) error {
	if strings.TrimSpace(j.URL) == "" {
		return errors.New("url is required")
	}
	u, err := url.Parse(j.URL)
	if err != nil {
		return fmt.Errorf("url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url %q: scheme must be http or https", j.URL)
	}
	if j.Timeout() < 0 {
		return fmt.Errorf("timeout_ms: %w", crontask.ErrInvalidTimeout)
	}
	if _, err := crontask.ParseSchedule(j.Schedule); err != nil {
		if strict || !errors.Is(err, crontask.ErrUnsupportedUnit) {
			return err
		}
	}
	return nil
}
