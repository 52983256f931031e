package config

import (
	"fmt"

	"httpcron/internal/crontask"
	logx "httpcron/pkg/logx"
)

// BuildTasks turns the job list into tasks keyed by job name.
func BuildTasks(cfg *Config, log logx.Logger) (map[string]*crontask.Task, error) {
	if cfg == nil {
		return map[string]*crontask.Task{}, nil
	}
	opts := []crontask.Option{crontask.WithLogger(log)}
	if cfg.Scheduler.StrictUnits {
		opts = append(opts, crontask.WithStrictUnits())
	}

	tasks := make(map[string]*crontask.Task, len(cfg.Jobs))
	for i, j := range cfg.Jobs {
		name := j.JobName()
		if _, dup := tasks[name]; dup {
			return nil, fmt.Errorf("jobs[%d]: duplicate name %q", i, name)
		}
		t, err := crontask.New(j.URL, j.Description, j.Schedule, j.Timeout(), opts...)
		if err != nil {
			return nil, fmt.Errorf("jobs[%d] %q: %w", i, name, err)
		}
		tasks[name] = t
	}
	return tasks, nil
}
