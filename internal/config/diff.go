package config

import (
	"reflect"
	"sort"
	"strings"

	logx "httpcron/pkg/logx"
)

// SummarizeChange returns the changed top-level sections and log fields
// describing the new values.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 5)
	fields := make([]logx.Field, 0, 16)

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		fields = append(fields,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	oE, nE := derefEngine(oldCfg.Engine), derefEngine(newCfg.Engine)
	if (oldCfg.Engine != nil) != (newCfg.Engine != nil) || !reflect.DeepEqual(oE, nE) {
		changed = append(changed, "engine")
		enabled := newCfg.Scheduler.Enabled
		if nE.Enabled != nil {
			enabled = *nE.Enabled
		}
		fields = append(fields,
			logx.Bool("engine.enabled", enabled),
			logx.Int("engine.workers", nE.Workers),
			logx.Int("engine.queue_size", nE.QueueSize),
			logx.String("engine.default_timeout", strings.TrimSpace(nE.DefaultTimeout)),
			logx.String("engine.max_queue_delay", strings.TrimSpace(nE.MaxQueueDelay)),
			logx.Any("engine.rate_per_sec", nE.RatePerSec),
		)
	}

	if oldCfg.Scheduler != newCfg.Scheduler {
		changed = append(changed, "scheduler")
		fields = append(fields,
			logx.Bool("scheduler.enabled", newCfg.Scheduler.Enabled),
			logx.String("scheduler.timezone", strings.TrimSpace(newCfg.Scheduler.Timezone)),
			logx.Bool("scheduler.startup_spread", newCfg.Scheduler.StartupSpread),
			logx.Bool("scheduler.strict_units", newCfg.Scheduler.StrictUnits),
		)
	}

	if oldCfg.Status != newCfg.Status {
		changed = append(changed, "status")
		fields = append(fields,
			logx.Bool("status.enabled", newCfg.Status.Enabled),
			logx.String("status.addr", newCfg.Status.Addr),
			logx.Bool("status.pprof", newCfg.Status.Pprof),
		)
	}

	added, removed, updated := diffJobs(oldCfg.Jobs, newCfg.Jobs)
	if len(added)+len(removed)+len(updated) > 0 {
		changed = append(changed, "jobs")
		fields = append(fields,
			logx.Int("jobs.count", len(newCfg.Jobs)),
			logx.Any("jobs.added", added),
			logx.Any("jobs.removed", removed),
			logx.Any("jobs.updated", updated),
		)
	}

	return changed, fields
}

func derefEngine(e *EngineConfig) EngineConfig {
	if e == nil {
		return EngineConfig{}
	}
	return *e
}

func diffJobs(oldJobs, newJobs []JobConfig) (added, removed, updated []string) {
	index := func(jobs []JobConfig) map[string]JobConfig {
		m := make(map[string]JobConfig, len(jobs))
		for _, j := range jobs {
			m[j.JobName()] = j
		}
		return m
	}
	o, n := index(oldJobs), index(newJobs)
	for name, nj := range n {
		oj, ok := o[name]
		switch {
		case !ok:
			added = append(added, name)
		case !sameJob(oj, nj):
			updated = append(updated, name)
		}
	}
	for name := range o {
		if _, ok := n[name]; !ok {
			removed = append(removed, name)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)
	sort.Strings(updated)
	return added, removed, updated
}

func sameJob(a, b JobConfig) bool {
	return a.URL == b.URL && a.Description == b.Description && a.Schedule == b.Schedule && a.Timeout() == b.Timeout()
}
