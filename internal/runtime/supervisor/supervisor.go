// Package supervisor runs the daemon's long-lived goroutines under one
// context: named, panic-safe and optionally restarted.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/errgroup"

	logx "httpcron/pkg/logx"
)

// Supervisor tracks goroutines started with Go, Go0 and GoRestart. The
// first failure is kept and, with WithCancelOnError, cancels the context
// shared by all of them.
type Supervisor struct {
	ctx    context.Context
	cancel context.CancelFunc
	log    logx.Logger

	cancelOnErr bool

	group    errgroup.Group
	waitOnce sync.Once
	done     chan struct{}

	mu  sync.Mutex
	err error
}

type Option func(*Supervisor)

func WithLogger(log logx.Logger) Option {
	return func(s *Supervisor) { s.log = log }
}

// WithCancelOnError cancels the supervisor context on the first failure.
func WithCancelOnError(enabled bool) Option {
	return func(s *Supervisor) { s.cancelOnErr = enabled }
}

func New(parent context.Context, opts ...Option) *Supervisor {
	ctx, cancel := context.WithCancel(parent)
	s := &Supervisor{ctx: ctx, cancel: cancel, done: make(chan struct{})}
	for _, opt := range opts {
		opt(s)
	}
	if s.log.IsZero() {
		s.log = logx.Nop()
	}
	return s
}

func (s *Supervisor) Context() context.Context { return s.ctx }

// Cancel cancels the context without waiting.
func (s *Supervisor) Cancel() { s.cancel() }

// Err returns the first failure, if any.
func (s *Supervisor) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Go runs fn once. An error other than context.Canceled, or a panic, is a
// failure.
func (s *Supervisor) Go(name string, fn func(ctx context.Context) error) {
	s.group.Go(func() error {
		s.log.Debug("goroutine started", logx.String("name", name))
		defer s.log.Debug("goroutine exited", logx.String("name", name))

		if err := s.call(name, fn); err != nil && !errors.Is(err, context.Canceled) {
			s.fail(fmt.Errorf("%s: %w", name, err))
		}
		return nil
	})
}

// Go0 is Go for functions that cannot fail.
func (s *Supervisor) Go0(name string, fn func(ctx context.Context)) {
	s.Go(name, func(ctx context.Context) error {
		fn(ctx)
		return nil
	})
}

// RestartOption configures GoRestart.
type RestartOption func(*backoff.ExponentialBackOff)

// WithRestartBackoff bounds the delay between restarts.
func WithRestartBackoff(initial, limit time.Duration) RestartOption {
	return func(b *backoff.ExponentialBackOff) {
		b.InitialInterval = initial
		b.MaxInterval = max(initial, limit)
	}
}

// healthyRun is how long fn must run before the restart delay resets.
const healthyRun = 30 * time.Second

// GoRestart runs fn again after every error or panic, waiting an
// exponentially growing, jittered delay, until fn returns nil or the
// context is canceled. Restarts are not failures.
func (s *Supervisor) GoRestart(name string, fn func(ctx context.Context) error, opts ...RestartOption) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 250 * time.Millisecond
	bo.MaxInterval = 30 * time.Second
	for _, opt := range opts {
		opt(bo)
	}
	bo.Reset()

	s.Go0(name, func(ctx context.Context) {
		for ctx.Err() == nil {
			began := time.Now()
			err := s.call(name, fn)
			if err == nil || ctx.Err() != nil {
				return
			}
			if time.Since(began) >= healthyRun {
				bo.Reset()
			}
			wait := bo.NextBackOff()
			s.log.Warn("goroutine restarting", logx.String("name", name), logx.Duration("in", wait), logx.Err(err))
			select {
			case <-ctx.Done():
			case <-time.After(wait):
			}
		}
	})
}

// call runs fn, turning a panic into an error.
func (s *Supervisor) call(name string, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("goroutine panicked",
				logx.String("name", name),
				logx.Any("panic", r),
				logx.String("stack", string(debug.Stack())),
			)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(s.ctx)
}

// Wait blocks until every goroutine has returned or ctx is done, and
// returns the first failure.
func (s *Supervisor) Wait(ctx context.Context) error {
	s.waitOnce.Do(func() {
		go func() {
			_ = s.group.Wait()
			close(s.done)
		}()
	})
	select {
	case <-s.done:
		return s.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Supervisor) fail(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
	if s.cancelOnErr {
		s.cancel()
	}
}
