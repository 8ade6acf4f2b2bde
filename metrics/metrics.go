// Package metrics exports job manager and scheduler state as Prometheus
// collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/viant/lodstream/job"
	"github.com/viant/lodstream/progress"
	"github.com/viant/lodstream/scheduler"
)

const namespace = "lodstream"

// Collector holds the streaming collectors. Observe is called once per tick
// from the driving thread.
type Collector struct {
	active   prometheus.Gauge
	pending  prometheus.Gauge
	runnable prometheus.Gauge
	stalled  prometheus.Gauge
	jobs     prometheus.Gauge

	requests *prometheus.CounterVec
	bytes    prometheus.Counter
	lods     prometheus.Counter
	parsers  prometheus.Counter

	tickSteps    prometheus.Histogram
	tickDuration prometheus.Histogram

	last progress.Counters
}

// New creates the collectors and registers them with registerer.
func New(registerer prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		active:   gauge("scheduler", "active_parsers", "Parsers with a request in flight"),
		pending:  gauge("scheduler", "pending_parsers", "Parsers waiting for a request slot"),
		runnable: gauge("scheduler", "runnable_parsers", "Pending parsers with a window to fetch"),
		stalled:  gauge("scheduler", "stalled", "1 when parsers are pending but none can fetch"),
		jobs:     gauge("jobs", "queued", "Jobs held by the job manager"),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "requests_total",
			Help:      "Window requests by outcome",
		}, []string{"outcome"}),
		bytes:   counter("scheduler", "bytes_total", "Payload bytes delivered to parsers"),
		lods:    counter("parser", "lods_total", "Parsed levels of detail"),
		parsers: counter("parser", "completed_total", "Assets streamed to completion"),
		tickSteps: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "tick_steps",
			Help:      "Job steps performed per tick",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "tick_duration_seconds",
			Help:      "Time spent running jobs per tick",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 10),
		}),
	}
	for _, collector := range []prometheus.Collector{
		c.active, c.pending, c.runnable, c.stalled, c.jobs,
		c.requests, c.bytes, c.lods, c.parsers, c.tickSteps, c.tickDuration,
	} {
		if err := registerer.Register(collector); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Observe records one tick.
func (c *Collector) Observe(tick job.TickStats, health scheduler.Health, counters progress.Counters) {
	c.active.Set(float64(health.Active))
	c.pending.Set(float64(health.Pending))
	c.runnable.Set(float64(health.Runnable))
	stalled := 0.0
	if health.Stalled {
		stalled = 1
	}
	c.stalled.Set(stalled)
	c.jobs.Set(float64(tick.Remaining))
	c.tickSteps.Observe(float64(tick.Steps))
	c.tickDuration.Observe(tick.Elapsed.Seconds())

	last := c.last
	if counters.Requests < last.Requests {
		last = progress.Counters{}
	}
	add(c.requests.WithLabelValues("issued"), counters.Requests-last.Requests)
	add(c.requests.WithLabelValues("completed"), counters.Completed-last.Completed)
	add(c.requests.WithLabelValues("failed"), counters.Failed-last.Failed)
	add(c.requests.WithLabelValues("aborted"), counters.Aborted-last.Aborted)
	add(c.bytes, int(counters.Bytes-last.Bytes))
	add(c.lods, counters.Lods-last.Lods)
	add(c.parsers, counters.Parsers-last.Parsers)
	c.last = counters
}

// Handler serves the metrics gathered by gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// add ignores negative deltas left by a counter reset.
func add(c prometheus.Counter, delta int) {
	if delta > 0 {
		c.Add(float64(delta))
	}
}

func gauge(subsystem, name, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Subsystem: subsystem, Name: name, Help: help})
}

func counter(subsystem, name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Subsystem: subsystem, Name: name, Help: help})
}
