package status

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"httpcron/internal/task/engine"
	"httpcron/internal/task/scheduler"
	logx "httpcron/pkg/logx"
)

type fakeScheduler struct {
	snap scheduler.Snapshot
	errs map[string]error
	ran  []string
}

func (f *fakeScheduler) Snapshot() scheduler.Snapshot { return f.snap }

func (f *fakeScheduler) RunNow(name string) error {
	if err, ok := f.errs[name]; ok {
		return err
	}
	f.ran = append(f.ran, name)
	return nil
}

type fakeEngine struct{ snap engine.Snapshot }

func (f fakeEngine) Snapshot() engine.Snapshot { return f.snap }

func newTestHandler(t *testing.T, pprof bool) (http.Handler, *fakeScheduler) {
	t.Helper()
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "httpcron_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	fs := &fakeScheduler{
		snap: scheduler.Snapshot{Enabled: true, Timezone: "UTC", Jobs: []scheduler.JobInfo{{Name: "ping", URL: "http://a/", Schedule: "every 1 minutes", Period: time.Minute}}},
		errs: map[string]error{
			"busy":  fmt.Errorf("wrap: %w", engine.ErrBusy),
			"full":  engine.ErrQueueFull,
			"off":   engine.ErrNotRunning,
			"ghost": fmt.Errorf("%w: ghost", scheduler.ErrUnknownJob),
		},
	}
	h := NewHandler(Deps{
		Scheduler: fs,
		Engine:    fakeEngine{snap: engine.Snapshot{Enabled: true, Workers: 3}},
		Gatherer:  reg,
	}, logx.Nop(), pprof)
	return h, fs
}

func do(h http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, http.NoBody))
	return rec
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	h, _ := newTestHandler(t, false)
	rec := do(h, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	h, _ := newTestHandler(t, false)
	rec := do(h, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "httpcron_test_total 1")
}

func TestJobsAndEngineSnapshots(t *testing.T) {
	t.Parallel()

	h, _ := newTestHandler(t, false)

	rec := do(h, http.MethodGet, "/v1/jobs")
	require.Equal(t, http.StatusOK, rec.Code)
	var snap scheduler.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.Len(t, snap.Jobs, 1)
	assert.Equal(t, "ping", snap.Jobs[0].Name)
	assert.Equal(t, time.Minute, snap.Jobs[0].Period)

	rec = do(h, http.MethodGet, "/v1/engine")
	require.Equal(t, http.StatusOK, rec.Code)
	var es engine.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &es))
	assert.Equal(t, 3, es.Workers)
}

func TestRunNowStatusCodes(t *testing.T) {
	t.Parallel()

	h, fs := newTestHandler(t, false)
	tests := []struct {
		name string
		want int
	}{
		{"ping", http.StatusAccepted},
		{"busy", http.StatusConflict},
		{"full", http.StatusServiceUnavailable},
		{"off", http.StatusServiceUnavailable},
		{"ghost", http.StatusNotFound},
	}
	for _, tt := range tests {
		rec := do(h, http.MethodPost, "/v1/jobs/"+tt.name+"/run")
		assert.Equal(t, tt.want, rec.Code, tt.name)
	}
	assert.Equal(t, []string{"ping"}, fs.ran)

	rec := do(h, http.MethodGet, "/v1/jobs/ping/run")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestPprofMountedOnlyWhenEnabled(t *testing.T) {
	t.Parallel()

	off, _ := newTestHandler(t, false)
	assert.Equal(t, http.StatusNotFound, do(off, http.MethodGet, "/debug/pprof/").Code)

	on, _ := newTestHandler(t, true)
	assert.Equal(t, http.StatusOK, do(on, http.MethodGet, "/debug/pprof/").Code)
}

func TestServerLifecycle(t *testing.T) {
	t.Parallel()

	srv := NewServer(Config{Enabled: true, Addr: "127.0.0.1:0"}, Deps{}, logx.Nop())
	srv.Start(context.Background())

	select {
	case <-srv.Ready():
	case <-time.After(3 * time.Second):
		t.Fatal("server not ready")
	}
	addr := srv.Addr()
	require.NotEmpty(t, addr)

	resp, err := http.Get("http://" + addr + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, "ok", string(body))

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	srv.Reconfigure(ctx, Config{Enabled: false})
	assert.Empty(t, srv.Addr())
	assert.False(t, srv.Enabled())
}

func TestServerRebindsOnReconfigure(t *testing.T) {
	t.Parallel()

	srv := NewServer(Config{Enabled: true, Addr: "127.0.0.1:0"}, Deps{}, logx.Nop())
	srv.Start(context.Background())
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	defer srv.Stop(ctx)

	<-srv.Ready()
	require.Eventually(t, func() bool { return srv.Addr() != "" }, 3*time.Second, 10*time.Millisecond)
	first := srv.Addr()

	// Same config: the listener is kept.
	srv.Reconfigure(ctx, Config{Enabled: true, Addr: " 127.0.0.1:0 "})
	assert.Equal(t, first, srv.Addr())

	srv.Reconfigure(ctx, Config{Enabled: true, Addr: "127.0.0.1:0", Pprof: true})
	require.Eventually(t, func() bool { return srv.Addr() != "" }, 3*time.Second, 10*time.Millisecond)
	resp, err := http.Get("http://" + srv.Addr() + "/debug/pprof/")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServerNeedsAddr(t *testing.T) {
	t.Parallel()

	srv := NewServer(Config{Enabled: true, Addr: "  "}, Deps{}, logx.Nop())
	srv.Start(context.Background())
	assert.Empty(t, srv.Addr())
	srv.Stop(context.Background())
}

func TestIsLoopbackAddr(t *testing.T) {
	t.Parallel()

	assert.True(t, isLoopbackAddr("127.0.0.1:9108"))
	assert.True(t, isLoopbackAddr("localhost:1"))
	assert.True(t, isLoopbackAddr("[::1]:1"))
	assert.False(t, isLoopbackAddr(":9108"))
	assert.False(t, isLoopbackAddr("0.0.0.0:9108"))
	assert.False(t, isLoopbackAddr("nope"))
}
