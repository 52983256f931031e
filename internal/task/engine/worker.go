package engine

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"httpcron/internal/eventbus"
	logx "httpcron/pkg/logx"
)

func (s *Service) work(ctx context.Context, gen *generation) {
	for ctx.Err() == nil {
		select {
		case <-ctx.Done():
		case p := <-gen.queue:
			s.execute(ctx, gen, p)
		}
	}
}

func (s *Service) execute(ctx context.Context, gen *generation, p pending) {
	out := p.out
	if maxWait := s.Config().MaxQueueDelay; maxWait > 0 {
		if waited := time.Since(out.Queued); waited > maxWait {
			p.guard.release()
			out.Waited = waited
			out.Err = DropStale
			s.droppedStale.Add(1)
			s.emit(eventbus.TickDropped, out)
			s.recent.add(out)
			s.warnStale.Do(func() {
				s.log.Warn("tick dropped: waited too long in queue",
					logx.String("job", out.Job),
					logx.Duration("waited", waited),
					logx.Uint64("dropped_stale", s.droppedStale.Load()),
				)
			})
			return
		}
	}
	if gen.limiter != nil {
		if err := gen.limiter.Wait(ctx); err != nil {
			p.guard.release()
			return
		}
	}

	out.Started = time.Now()
	out.Waited = out.Started.Sub(out.Queued)
	s.executing.Add(1)
	s.emit(eventbus.TickStarted, out)
	s.log.Debug("tick started", logx.String("job", out.Job), logx.Duration("waited", out.Waited))

	err := s.invoke(ctx, p)

	out.Took = time.Since(out.Started)
	s.executing.Add(-1)
	// Free the job before the outcome becomes visible.
	p.guard.release()

	if err != nil {
		out.Err = err.Error()
		s.log.Warn("tick failed", logx.String("job", out.Job), logx.Duration("took", out.Took), logx.Err(err))
		s.emit(eventbus.TickFailed, out)
	} else {
		s.log.Debug("tick done", logx.String("job", out.Job), logx.Duration("took", out.Took))
		s.emit(eventbus.TickSucceeded, out)
	}
	s.recent.add(out)
}

// invoke runs the tick under its timeout and turns a panic into an error.
func (s *Service) invoke(ctx context.Context, p pending) (err error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("tick panicked",
				logx.String("job", p.tick.Job),
				logx.Any("panic", r),
				logx.String("stack", string(debug.Stack())),
			)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return p.tick.Run(ctx)
}
