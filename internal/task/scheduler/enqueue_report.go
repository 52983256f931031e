package scheduler

import (
	"errors"
	"time"

	"golang.org/x/time/rate"

	"httpcron/internal/task/engine"
	logx "httpcron/pkg/logx"
)

const enqueueWarnEvery = 5 * time.Second

// reportEnqueueError logs why a tick of job did not make it into the
// engine. Warnings are limited to one per job every enqueueWarnEvery.
func (s *Service) reportEnqueueError(job string, err error) {
	if err == nil {
		return
	}
	// A tick outliving its period is normal; the next one is skipped.
	if errors.Is(err, engine.ErrBusy) {
		s.log.Debug("tick skipped: previous run still in flight", logx.String("job", job))
		return
	}

	s.warnMu.Lock()
	w, ok := s.warn[job]
	if !ok {
		w = &rate.Sometimes{Interval: enqueueWarnEvery}
		s.warn[job] = w
	}
	s.warnMu.Unlock()

	w.Do(func() {
		s.log.Warn("tick not enqueued", logx.String("job", job), logx.Err(err))
	})
}

// forgetWarn drops the throttle of a removed job.
func (s *Service) forgetWarn(job string) {
	s.warnMu.Lock()
	delete(s.warn, job)
	s.warnMu.Unlock()
}
