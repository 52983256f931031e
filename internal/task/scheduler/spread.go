package scheduler

import (
	"hash/fnv"
	"math/rand/v2"
	"time"

	"github.com/robfig/cron/v3"
)

const maxStartupSpread = 30 * time.Second

// spreadSchedule fires first at a fixed instant, then follows base.
type spreadSchedule struct {
	base  cron.Schedule
	first time.Time
}

func (s *spreadSchedule) Next(t time.Time) time.Time {
	if t.Before(s.first) {
		return s.first
	}
	return s.base.Next(t)
}

// makeIntervalScheduleWithSpread returns an every-period schedule whose first
// fire lands one period plus a per-job jitter of up to min(period, 30s) after now.
func makeIntervalScheduleWithSpread(every time.Duration, now time.Time, job string) (cron.Schedule, time.Duration) {
	base := cron.Every(every)
	window := min(every, maxStartupSpread)
	if window <= 0 {
		return base, 0
	}

	h := fnv.New64a()
	_, _ = h.Write([]byte(job))
	rng := rand.New(rand.NewPCG(h.Sum64(), uint64(now.UnixNano())))
	jitter := time.Duration(rng.Int64N(int64(window)))
	return &spreadSchedule{base: base, first: now.Add(every + jitter)}, jitter
}
