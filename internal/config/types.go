package config

// Config is the on-disk configuration, in JSON or YAML.
type Config struct {
	Logging LoggingConfig `json:"logging"`

	// Engine controls how ticks are executed. If omitted, defaults apply and
	// the engine follows scheduler.enabled.
	Engine *EngineConfig `json:"engine,omitempty"`

	Scheduler SchedulerConfig `json:"scheduler"`
	Status    StatusConfig    `json:"status"`
	Jobs      []JobConfig     `json:"jobs"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// EngineConfig controls the task execution engine.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
//
// Defaults (when fields are omitted/zero):
//   - enabled: scheduler.enabled
//   - workers: 2
//   - queue_size: 256
//   - default_timeout: "0s" (disabled)
//   - max_queue_delay: "0s" (disabled)
//   - history_size: 200
//   - rate_per_sec: 0 (unlimited), burst: 1
type EngineConfig struct {
	Enabled *bool `json:"enabled,omitempty"`
	Workers int   `json:"workers,omitempty"`

	QueueSize int `json:"queue_size,omitempty"`

	DefaultTimeout string `json:"default_timeout,omitempty"`
	MaxQueueDelay  string `json:"max_queue_delay,omitempty"`

	HistorySize int `json:"history_size,omitempty"`

	RatePerSec float64 `json:"rate_per_sec,omitempty"`
	Burst      int     `json:"burst,omitempty"`
}

// SchedulerConfig controls the scheduler (trigger) service.
type SchedulerConfig struct {
	Enabled bool `json:"enabled"`

	// Trigger timezone.
	Timezone string `json:"timezone,omitempty"`

	StartupSpread bool `json:"startup_spread,omitempty"`

	// StrictUnits rejects jobs whose schedule unit is not hours, minutes or
	// seconds instead of loading them with a zero period.
	StrictUnits bool `json:"strict_units,omitempty"`
}

// StatusConfig controls the status HTTP server.
//
// Prefer binding to localhost; the surface is unauthenticated.
type StatusConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default: "127.0.0.1:9108"
	Pprof   bool   `json:"pprof,omitempty"`
}

// JobConfig is one cron job: hit URL on a fixed period.
//
// Example:
//
//	{ "url": "http://localhost:8080/console/stat", "schedule": "every 10 minutes", "timeout_ms": 5000 }
type JobConfig struct {
	// Name defaults to URL.
	Name        string `json:"name,omitempty"`
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
	Schedule    string `json:"schedule"`

	// TimeoutMS bounds dialing and the whole exchange. Omitted means
	// DefaultJobTimeoutMS; 0 disables the timeout.
	TimeoutMS *int `json:"timeout_ms,omitempty"`
}

const (
	DefaultStatusAddr   = "127.0.0.1:9108"
	DefaultJobTimeoutMS = 30_000
)

// JobName returns the name a job is registered under.
func (j JobConfig) JobName() string {
	if j.Name != "" {
		return j.Name
	}
	return j.URL
}

// Timeout returns the effective timeout in milliseconds.
func (j JobConfig) Timeout() int {
	if j.TimeoutMS == nil {
		return DefaultJobTimeoutMS
	}
	return *j.TimeoutMS
}
