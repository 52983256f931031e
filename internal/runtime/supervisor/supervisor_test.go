package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestGoRecordsFirstErrorAndCancels(t *testing.T) {
	t.Parallel()

	s := New(context.Background(), WithCancelOnError(true))
	s.Go("fails", func(ctx context.Context) error { return errors.New("boom") })
	s.Go0("waits", func(ctx context.Context) { <-ctx.Done() })

	err := s.Wait(waitCtx(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fails: boom")
	assert.Error(t, s.Context().Err())
}

func TestGoWithoutCancelOnErrorKeepsRunning(t *testing.T) {
	t.Parallel()

	s := New(context.Background())
	s.Go("fails", func(ctx context.Context) error { return errors.New("boom") })

	require.Eventually(t, func() bool { return s.Err() != nil }, time.Second, 5*time.Millisecond)
	assert.NoError(t, s.Context().Err())
	s.Cancel()
	assert.Error(t, s.Wait(waitCtx(t)))
}

func TestCanceledIsNotAFailure(t *testing.T) {
	t.Parallel()

	s := New(context.Background())
	s.Go("loop", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	s.Cancel()
	assert.NoError(t, s.Wait(waitCtx(t)))
}

func TestGoRecoversPanic(t *testing.T) {
	t.Parallel()

	s := New(context.Background())
	s.Go0("panics", func(ctx context.Context) { panic("bad") })

	err := s.Wait(waitCtx(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panics: panic: bad")
}

func TestGoRestartRestartsUntilSuccess(t *testing.T) {
	t.Parallel()

	s := New(context.Background())
	var runs atomic.Int32
	s.GoRestart("flaky", func(ctx context.Context) error {
		switch runs.Add(1) {
		case 1:
			return errors.New("transient")
		case 2:
			panic("worse")
		}
		return nil
	}, WithRestartBackoff(time.Millisecond, 5*time.Millisecond))

	require.NoError(t, s.Wait(waitCtx(t)))
	assert.EqualValues(t, 3, runs.Load())
}

func TestGoRestartStopsOnCancel(t *testing.T) {
	t.Parallel()

	s := New(context.Background())
	var runs atomic.Int32
	s.GoRestart("broken", func(ctx context.Context) error {
		runs.Add(1)
		return errors.New("always")
	}, WithRestartBackoff(time.Millisecond, 2*time.Millisecond))

	require.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, time.Millisecond)
	s.Cancel()
	assert.NoError(t, s.Wait(waitCtx(t)))
}

func TestWaitHonoursDeadline(t *testing.T) {
	t.Parallel()

	s := New(context.Background())
	release := make(chan struct{})
	s.Go0("stuck", func(ctx context.Context) { <-release })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Wait(ctx), context.DeadlineExceeded)

	close(release)
	assert.NoError(t, s.Wait(waitCtx(t)))
}
