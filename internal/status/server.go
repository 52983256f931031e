package status

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"httpcron/internal/runtime/supervisor"
	logx "httpcron/pkg/logx"
)

// Config of the status listener. Addr is required when Enabled.
type Config struct {
	Enabled bool
	Addr    string
	Pprof   bool
}

// Server owns the status listener. A failed Serve is retried with backoff
// and Reconfigure rebinds when the address or the pprof flag changes.
type Server struct {
	log  logx.Logger
	deps Deps

	mu    sync.Mutex
	cfg   Config
	live  *listener // nil while stopped
	bound net.Addr

	ready     chan struct{}
	readyOnce sync.Once
}

// listener is one Start..Stop cycle, bound to the config it started with.
type listener struct {
	cfg Config
	sup *supervisor.Supervisor
}

func NewServer(cfg Config, deps Deps, log logx.Logger) *Server {
	if log.IsZero() {
		log = logx.Nop()
	}
	cfg.Addr = strings.TrimSpace(cfg.Addr)
	return &Server{cfg: cfg, deps: deps, log: log, ready: make(chan struct{})}
}

func (s *Server) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Enabled
}

// Addr returns the bound address, or "" when not listening.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bound == nil {
		return ""
	}
	return s.bound.String()
}

// Ready is closed the first time the server binds its listener.
func (s *Server) Ready() <-chan struct{} { return s.ready }

// Reconfigure applies cfg and starts, stops or rebinds the server.
func (s *Server) Reconfigure(ctx context.Context, cfg Config) {
	cfg.Addr = strings.TrimSpace(cfg.Addr)
	s.mu.Lock()
	s.cfg = cfg
	l := s.live
	s.mu.Unlock()

	if l != nil && l.cfg == cfg {
		return
	}
	s.Stop(ctx)
	s.Start(ctx)
}

// Start does nothing when disabled or already running.
func (s *Server) Start(ctx context.Context) {
	s.mu.Lock()
	if s.live != nil || !s.cfg.Enabled {
		s.mu.Unlock()
		return
	}
	cfg := s.cfg
	if cfg.Addr == "" {
		s.mu.Unlock()
		s.log.Error("status server not started: empty listen address")
		return
	}
	l := &listener{
		cfg: cfg,
		// The status API is optional; its failures never stop the app.
		sup: supervisor.New(ctx, supervisor.WithLogger(s.log), supervisor.WithCancelOnError(false)),
	}
	s.live = l
	s.mu.Unlock()

	if !isLoopbackAddr(cfg.Addr) {
		s.log.Warn("status server bound to a non-loopback address; it has no authentication", logx.String("addr", cfg.Addr))
	}
	l.sup.GoRestart("status.http", func(c context.Context) error { return s.serve(c, l) },
		supervisor.WithRestartBackoff(500*time.Millisecond, 10*time.Second))
}

// Stop shuts the listener down, waiting for it until ctx is done.
func (s *Server) Stop(ctx context.Context) {
	s.mu.Lock()
	l := s.live
	s.live, s.bound = nil, nil
	s.mu.Unlock()
	if l == nil {
		return
	}

	l.sup.Cancel()
	if err := l.sup.Wait(ctx); err != nil {
		s.log.Warn("status server stop incomplete", logx.Err(err))
		return
	}
	s.log.Info("status server stopped")
}

// serve binds l's address and serves until ctx is done. Any other exit is
// an error so the supervisor rebinds.
func (s *Server) serve(ctx context.Context, l *listener) error {
	ln, err := net.Listen("tcp", l.cfg.Addr)
	if err != nil {
		return fmt.Errorf("status listen %s: %w", l.cfg.Addr, err)
	}
	srv := &http.Server{
		Handler:           NewHandler(s.deps, s.log, l.cfg.Pprof),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.mu.Lock()
	if s.live == l {
		s.bound = ln.Addr()
	}
	s.mu.Unlock()
	s.readyOnce.Do(func() { close(s.ready) })
	s.log.Info("status server started", logx.String("addr", ln.Addr().String()), logx.Bool("pprof", l.cfg.Pprof))

	served := make(chan error, 1)
	go func() { served <- srv.Serve(ln) }()

	select {
	case err = <-served:
		s.mu.Lock()
		if s.live == l {
			s.bound = nil
		}
		s.mu.Unlock()
		return fmt.Errorf("status serve: %w", err)
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		_ = srv.Close()
	}
	<-served
	return ctx.Err()
}

func isLoopbackAddr(addr string) bool {
	h, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if strings.EqualFold(strings.TrimSpace(h), "localhost") {
		return true
	}
	ip := net.ParseIP(h)
	return ip != nil && ip.IsLoopback()
}
