// Package status serves health, metrics and job diagnostics over HTTP.
package status

import (
	"encoding/json"
	"errors"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"httpcron/internal/task/engine"
	"httpcron/internal/task/scheduler"
	logx "httpcron/pkg/logx"
)

// Scheduler is what the job endpoints need.
type Scheduler interface {
	Snapshot() scheduler.Snapshot
	RunNow(name string) error
}

// Engine is what the engine endpoint needs.
type Engine interface {
	Snapshot() engine.Snapshot
}

type Deps struct {
	Scheduler Scheduler
	Engine    Engine
	Gatherer  prometheus.Gatherer
}

// NewHandler builds the router. Nil deps disable their endpoints.
func NewHandler(deps Deps, log logx.Logger, withPprof bool) http.Handler {
	if log.IsZero() {
		log = logx.Nop()
	}
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(recoverer(log))
	r.Use(requestLog(log))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})

	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		if deps.Scheduler != nil {
			r.Get("/jobs", func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, deps.Scheduler.Snapshot())
			})
			r.Post("/jobs/{name}/run", runNow(deps.Scheduler))
		}
		if deps.Engine != nil {
			r.Get("/engine", func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, deps.Engine.Snapshot())
			})
		}
	})

	if withPprof {
		r.Mount("/debug", chimw.Profiler())
	}
	return r
}

func runNow(s Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		err := s.RunNow(name)
		if err == nil {
			writeJSON(w, http.StatusAccepted, map[string]string{"job": name, "status": "queued"})
			return
		}
		writeJSON(w, statusFor(err), map[string]string{"job": name, "error": err.Error()})
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, scheduler.ErrUnknownJob):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, engine.ErrQueueFull),
		errors.Is(err, engine.ErrDisabled),
		errors.Is(err, engine.ErrNotRunning):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type responseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (w *responseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.size += n
	return n, err
}

func requestLog(log logx.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrap := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(wrap, r)
			log.Debug("request",
				logx.String("request_id", chimw.GetReqID(r.Context())),
				logx.String("method", r.Method),
				logx.String("path", r.URL.Path),
				logx.Int("status", wrap.status),
				logx.Int64("duration_ms", time.Since(start).Milliseconds()),
				logx.Int("size", wrap.size),
			)
		})
	}
}

func recoverer(log logx.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					log.Error("panic recovered",
						logx.String("request_id", chimw.GetReqID(r.Context())),
						logx.String("path", r.URL.Path),
						logx.Any("panic", rec),
						logx.String("stack", string(debug.Stack())),
					)
					writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
