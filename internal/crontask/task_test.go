package crontask_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"httpcron/internal/crontask"
	"httpcron/pkg/logx/logxtest"
)

const testURL = "http://127.0.0.1:1/ping"

func TestNewDerivesPeriod(t *testing.T) {
	t.Parallel()

	tests := []struct {
		schedule string
		want     int64
	}{
		{"every 12 hours", 43_200_000},
		{"every 10 minutes", 600_000},
		{"every 30 seconds", 30_000},
	}
	for _, tt := range tests {
		task, err := crontask.New(testURL, "desc", tt.schedule, 5000)
		require.NoError(t, err)
		assert.Equal(t, tt.want, task.PeriodMillis(), tt.schedule)
		assert.Equal(t, time.Duration(tt.want)*time.Millisecond, task.Period())
	}
}

func TestNewUnsupportedUnitDegradesToZero(t *testing.T) {
	t.Parallel()

	rec := logxtest.New()
	task, err := crontask.New(testURL, "desc", "every 5 days", 5000, crontask.WithLogger(rec.Logger()))
	require.NoError(t, err)
	assert.Zero(t, task.PeriodMillis())
	assert.Equal(t, crontask.UnitUnknown, task.Interval().Unit)
	require.Len(t, rec.ByLevel("warn"), 1)
}

func TestNewUnsupportedUnitStrict(t *testing.T) {
	t.Parallel()

	task, err := crontask.New(testURL, "desc", "every 5 days", 5000, crontask.WithStrictUnits())
	require.ErrorIs(t, err, crontask.ErrUnsupportedUnit)
	assert.Nil(t, task)
}

func TestNewRejectsNonNumericCount(t *testing.T) {
	t.Parallel()

	task, err := crontask.New(testURL, "desc", "every abc hours", 5000)
	require.ErrorIs(t, err, crontask.ErrInvalidSchedule)
	assert.Nil(t, task)
}

func TestNewRejectsNegativeTimeout(t *testing.T) {
	t.Parallel()

	_, err := crontask.New(testURL, "desc", "every 1 seconds", -1)
	require.ErrorIs(t, err, crontask.ErrInvalidTimeout)
}

func TestNewLogsParseAtTrace(t *testing.T) {
	t.Parallel()

	rec := logxtest.New()
	_, err := crontask.New(testURL, "desc", "every 10 minutes", 0, crontask.WithLogger(rec.Logger()))
	require.NoError(t, err)

	traces := rec.ByLevel("trace")
	require.Len(t, traces, 1)
	assert.Equal(t, testURL, traces[0].Str("url"))
	assert.EqualValues(t, 600_000, traces[0]["period_ms"])
}

func TestAccessorsAndSetURLKeepsPeriod(t *testing.T) {
	t.Parallel()

	task, err := crontask.New(testURL, "stats", "every 30 seconds", 1500)
	require.NoError(t, err)

	assert.Equal(t, testURL, task.URL())
	assert.Equal(t, "stats", task.Description())
	assert.Equal(t, "every 30 seconds", task.Schedule())
	assert.Equal(t, 1500, task.TimeoutMillis())
	assert.Equal(t, 1500*time.Millisecond, task.Timeout())

	task.SetURL("http://example.invalid/other")
	assert.Equal(t, "http://example.invalid/other", task.URL())
	assert.Equal(t, int64(30_000), task.PeriodMillis())
	assert.Equal(t, "every 30 seconds", task.Schedule())
}

func TestRunUnreachableEndpointLogsOneError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := srv.URL + "/gone"
	srv.Close()

	rec := logxtest.New()
	task, err := crontask.New(endpoint, "desc", "every 1 seconds", 1000, crontask.WithLogger(rec.Logger()))
	require.NoError(t, err)

	assert.NotPanics(t, task.Run)

	errs := rec.ByLevel("error")
	require.Len(t, errs, 1)
	assert.Equal(t, endpoint, errs[0].Str("url"))
	assert.NotEmpty(t, errs[0].Str("err"))
}

func TestRunInvalidURLIsATransportFailure(t *testing.T) {
	t.Parallel()

	rec := logxtest.New()
	task, err := crontask.New("::not a url", "desc", "every 1 seconds", 1000, crontask.WithLogger(rec.Logger()))
	require.NoError(t, err)

	task.Run()
	require.Len(t, rec.ByLevel("error"), 1)
}

func TestRunTimeoutIsBounded(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	rec := logxtest.New()
	task, err := crontask.New(srv.URL, "slow", "every 1 seconds", 100, crontask.WithLogger(rec.Logger()))
	require.NoError(t, err)

	start := time.Now()
	task.Run()
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 2*time.Second)
	errs := rec.ByLevel("error")
	require.Len(t, errs, 1)
	assert.Equal(t, srv.URL, errs[0].Str("url"))
}

func TestRunSuccessLogsResponse(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		_, _ = fmt.Fprint(w, "pong")
	}))
	t.Cleanup(srv.Close)

	rec := logxtest.New()
	task, err := crontask.New(srv.URL, "desc", "every 1 seconds", 1000, crontask.WithLogger(rec.Logger()))
	require.NoError(t, err)

	require.NoError(t, task.RunContext(context.Background()))

	assert.Empty(t, rec.ByLevel("error"))
	debug := rec.ByLevel("debug")
	require.Len(t, debug, 2)
	assert.Equal(t, srv.URL, debug[0].Str("url"))
	assert.Equal(t, "pong", debug[1].Str("response"))
	assert.EqualValues(t, http.StatusOK, debug[1]["status"])
}

func TestRunNon2xxIsNotAFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	rec := logxtest.New()
	task, err := crontask.New(srv.URL, "desc", "every 1 seconds", 1000, crontask.WithLogger(rec.Logger()))
	require.NoError(t, err)

	require.NoError(t, task.RunContext(context.Background()))
	assert.Empty(t, rec.ByLevel("error"))
}

func TestRunIsIdempotent(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = fmt.Fprint(w, `{"ok":true}`)
	}))
	t.Cleanup(srv.Close)

	rec := logxtest.New()
	task, err := crontask.New(srv.URL, "desc", "every 1 seconds", 1000, crontask.WithLogger(rec.Logger()))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		task.Run()
	}

	assert.EqualValues(t, 3, hits.Load())
	var responses []string
	for _, r := range rec.ByLevel("debug") {
		if r.Message() == "executed cron job" {
			responses = append(responses, r.Str("response"))
		}
	}
	assert.Equal(t, []string{`{"ok":true}`, `{"ok":true}`, `{"ok":true}`}, responses)
}

func TestRunContextCanceled(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, "late")
	}))
	t.Cleanup(srv.Close)

	rec := logxtest.New()
	task, err := crontask.New(srv.URL, "desc", "every 1 seconds", 0, crontask.WithLogger(rec.Logger()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = task.RunContext(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, rec.ByLevel("error"), 1)
}

func TestRunUsesSetURL(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, r.URL.Path)
	}))
	t.Cleanup(srv.Close)

	rec := logxtest.New()
	task, err := crontask.New(srv.URL+"/a", "desc", "every 1 seconds", 1000, crontask.WithLogger(rec.Logger()))
	require.NoError(t, err)
	task.SetURL(srv.URL + "/b")

	task.Run()
	debug := rec.ByLevel("debug")
	require.NotEmpty(t, debug)
	assert.Equal(t, "/b", debug[len(debug)-1].Str("response"))
}
