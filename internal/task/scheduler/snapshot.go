package scheduler

import "time"

func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	tz := s.cfg.Timezone
	loc := s.loc
	if loc == nil {
		loc = time.Local
	}
	if tz == "" {
		tz = loc.String()
	}

	jobs := make([]JobInfo, 0, len(s.defs))
	for _, name := range s.namesLocked() {
		d := s.defs[name]
		it := JobInfo{
			Name:          d.name,
			URL:           d.task.URL(),
			Description:   d.task.Description(),
			Schedule:      d.task.Schedule(),
			Period:        d.task.Period(),
			Timeout:       d.task.Timeout(),
			StartupSpread: d.startupSpread,
			Running:       d.guard.Busy(),
		}
		if s.c != nil && d.entryID != 0 {
			e := s.c.Entry(d.entryID)
			it.Next = e.Next
			it.Prev = e.Prev
		}
		jobs = append(jobs, it)
	}

	return Snapshot{
		Enabled:  s.cfg.Enabled,
		Started:  s.c != nil,
		Timezone: tz,
		Jobs:     jobs,
	}
}
