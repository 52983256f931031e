// Package metrics turns task engine events into Prometheus series.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"httpcron/internal/eventbus"
	"httpcron/internal/task/engine"
)

// Outcomes used as the "outcome" label of httpcron_ticks_total.
const (
	OutcomeOK      = "ok"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

// Collector owns a private registry so tests and multiple apps never collide
// on the global one.
type Collector struct {
	reg *prometheus.Registry

	ticks    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	dropped  *prometheus.CounterVec
	jobs     prometheus.Gauge
}

// New builds the collector. executing reports how many ticks are running
// right now; it is read on every scrape and may be nil.
func New(executing func() int) *Collector {
	if executing == nil {
		executing = func() int { return 0 }
	}
	c := &Collector{
		reg: prometheus.NewRegistry(),
		ticks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "httpcron_ticks_total",
				Help: "Cron ticks by job and outcome.",
			},
			[]string{"job", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "httpcron_tick_duration_seconds",
				Help:    "Duration of executed cron ticks in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"job"},
		),
		dropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "httpcron_ticks_dropped_total",
				Help: "Ticks dropped before running, by reason (queue_full, stale_queue_delay).",
			},
			[]string{"job", "reason"},
		),
		jobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "httpcron_jobs",
			Help: "Number of scheduled jobs.",
		}),
	}
	c.reg.MustRegister(
		c.ticks, c.duration, c.dropped, c.jobs,
		prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "httpcron_ticks_executing",
				Help: "Ticks currently executing.",
			},
			func() float64 { return float64(executing()) },
		),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry is served by the status server.
func (c *Collector) Registry() *prometheus.Registry { return c.reg }

// SetJobs records how many jobs are scheduled.
func (c *Collector) SetJobs(n int) { c.jobs.Set(float64(n)) }

// Observe applies one engine event. Running ticks are not counted here;
// the executing gauge reads the engine directly so a dropped event never
// skews it.
func (c *Collector) Observe(e eventbus.Event) {
	out, ok := e.Data.(engine.Outcome)
	if !ok {
		return
	}
	switch e.Type {
	case eventbus.TickSucceeded:
		c.ticks.WithLabelValues(out.Job, OutcomeOK).Inc()
		c.duration.WithLabelValues(out.Job).Observe(out.Took.Seconds())
	case eventbus.TickFailed:
		c.ticks.WithLabelValues(out.Job, OutcomeFailed).Inc()
		c.duration.WithLabelValues(out.Job).Observe(out.Took.Seconds())
	case eventbus.TickSkipped:
		c.ticks.WithLabelValues(out.Job, OutcomeSkipped).Inc()
	case eventbus.TickDropped:
		c.dropped.WithLabelValues(out.Job, out.Err).Inc()
	}
}

// Consume applies events from bus until ctx is done.
func (c *Collector) Consume(ctx context.Context, bus eventbus.Bus) {
	if bus == nil {
		return
	}
	events, unsub := bus.Subscribe(256)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			c.Observe(e)
		}
	}
}
