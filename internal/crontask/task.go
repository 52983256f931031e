package crontask

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	logx "httpcron/pkg/logx"
)

// Task is one recurring HTTP GET job.
//
// The schedule is parsed once by New; the derived period never changes
// afterwards, not even when the URL is rebound with SetURL.
type Task struct {
	mu  sync.RWMutex
	url string

	description   string
	schedule      string
	timeoutMillis int
	interval      Interval
	period        time.Duration

	strict bool
	client *http.Client
	log    logx.Logger
}

type Option func(*Task)

// WithLogger injects the logger used for parse and run records.
func WithLogger(log logx.Logger) Option {
	return func(t *Task) { t.log = log }
}

// WithHTTPClient replaces the per-task client. The caller is then
// responsible for its timeouts.
func WithHTTPClient(c *http.Client) Option {
	return func(t *Task) { t.client = c }
}

// WithStrictUnits makes an unsupported unit a construction error instead
// of a zero period.
func WithStrictUnits() Option {
	return func(t *Task) { t.strict = true }
}

// New stores the job configuration and parses the schedule.
//
// A schedule whose count is not a positive integer fails with
// ErrInvalidSchedule. An unknown unit yields a task with a zero period
// (logged at WARN) unless WithStrictUnits is given. The URL is not
// validated here; a bad URL surfaces as a failed tick.
// timeoutMillis bounds dialing and the whole exchange; 0 means no timeout.
func New(url, description, schedule string, timeoutMillis int, opts ...Option) (*Task, error) {
	if timeoutMillis < 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidTimeout, timeoutMillis)
	}
	t := &Task{
		url:           url,
		description:   description,
		schedule:      schedule,
		timeoutMillis: timeoutMillis,
	}
	for _, o := range opts {
		if o != nil {
			o(t)
		}
	}
	if t.log.IsZero() {
		t.log = logx.Nop()
	}

	iv, err := ParseSchedule(schedule)
	if err != nil {
		if t.strict || !errors.Is(err, ErrUnsupportedUnit) {
			return nil, err
		}
		t.log.Warn("unsupported schedule unit; period is zero",
			logx.String("url", url), logx.String("schedule", schedule))
	}
	t.interval = iv
	t.period = iv.Period()

	if t.client == nil {
		t.client = newClient(t.Timeout())
	}

	t.log.Trace("cron job parsed",
		logx.String("url", url),
		logx.String("schedule", schedule),
		logx.Int64("period_ms", t.PeriodMillis()),
	)
	return t, nil
}

func newClient(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{Timeout: timeout}
	tr := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   timeout,
		ResponseHeaderTimeout: timeout,
		// One connection per tick, closed when the tick ends.
		DisableKeepAlives: true,
	}
	return &http.Client{Transport: tr, Timeout: timeout}
}

func (t *Task) Period() time.Duration { return t.period }

func (t *Task) PeriodMillis() int64 { return t.period.Milliseconds() }

// Interval returns the parsed schedule. Unit is UnitUnknown for a
// degenerate task.
func (t *Task) Interval() Interval { return t.interval }

func (t *Task) Description() string { return t.description }

func (t *Task) Schedule() string { return t.schedule }

func (t *Task) TimeoutMillis() int { return t.timeoutMillis }

func (t *Task) Timeout() time.Duration { return time.Duration(t.timeoutMillis) * time.Millisecond }

func (t *Task) URL() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.url
}

// SetURL rebinds the target. The period is left untouched.
func (t *Task) SetURL(url string) {
	t.mu.Lock()
	t.url = url
	t.mu.Unlock()
}

// Run performs one tick. It implements cron.Job and never fails: transport
// errors are logged at ERROR and dropped.
func (t *Task) Run() {
	defer func() {
		if r := recover(); r != nil {
			t.log.Error("cron job panicked", logx.String("url", t.URL()), logx.Any("panic", r))
		}
	}()
	_ = t.RunContext(context.Background())
}

// RunContext is Run bounded by ctx as well as the task timeout. The
// transport error, already logged, is returned for bookkeeping.
func (t *Task) RunContext(ctx context.Context) error {
	url := t.URL()
	t.log.Debug("executing cron job", logx.String("url", url), logx.String("description", t.description))

	status, body, err := t.get(ctx, url)
	if err != nil {
		t.log.Error("cron job failed", logx.String("url", url), logx.Err(err))
		return err
	}

	t.log.Debug("executed cron job",
		logx.String("url", url),
		logx.Int("status", status),
		logx.String("response", body),
	)
	return nil
}

func (t *Task) get(ctx context.Context, url string) (int, string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, "", fmt.Errorf("build request: %w", err)
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, "", fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, string(b), nil
}
