// ============================================================================
// WorkPool Metrics - Prometheus Monitoring
// ============================================================================
//
// Package: internal/metrics
// File: metrics.go
// Purpose: Collect and expose WorkPool metrics for Prometheus monitoring
//
// Metric Categories:
//
//   1. Job Counters - cumulative, monotonically increasing, one per
//      AsyncResult terminal category:
//      - taskpool_jobs_submitted_total
//      - taskpool_jobs_succeeded_total
//      - taskpool_jobs_errored_total
//      - taskpool_jobs_cancelled_total
//      - taskpool_jobs_interrupted_total
//
//   2. Performance Metrics (Histogram):
//      - taskpool_task_duration_seconds: time from Submit admitting the
//        job to its terminal transition (queue wait included).
//
//   3. Status Metrics (Gauge):
//      - taskpool_jobs_live: current size of the pool's live-job map.
//      - taskpool_workers: current worker count.
//
// Each WorkPool owns a private prometheus.Registry (not the global default
// registry) so that more than one pool can coexist in a process without
// metric name collisions.
//
// ============================================================================

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kellanburke/taskpool/pkg/asyncresult"
)

// Metrics holds the Prometheus collectors a WorkPool reports through.
type Metrics struct {
	Registry *prometheus.Registry

	submitted   prometheus.Counter
	succeeded   prometheus.Counter
	errored     prometheus.Counter
	cancelled   prometheus.Counter
	interrupted prometheus.Counter

	taskDuration prometheus.Histogram

	jobsLive prometheus.Gauge
	workers  prometheus.Gauge
}

// New builds a Metrics instance registered against a fresh, private
// registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		Registry: registry,
		submitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskpool_jobs_submitted_total",
			Help: "Total tasks submitted to the pool.",
		}),
		succeeded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskpool_jobs_succeeded_total",
			Help: "Total tasks that reached SUCCESS.",
		}),
		errored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskpool_jobs_errored_total",
			Help: "Total tasks that reached ERROR.",
		}),
		cancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskpool_jobs_cancelled_total",
			Help: "Total tasks that reached CANCELLED.",
		}),
		interrupted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskpool_jobs_interrupted_total",
			Help: "Total tasks that reached INTERRUPTED.",
		}),
		taskDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "taskpool_task_duration_seconds",
			Help:    "Task duration from submission to terminal state.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		jobsLive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "taskpool_jobs_live",
			Help: "Current number of non-terminal handles tracked by the pool.",
		}),
		workers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "taskpool_workers",
			Help: "Current worker goroutine count.",
		}),
	}

	registry.MustRegister(
		m.submitted, m.succeeded, m.errored, m.cancelled, m.interrupted,
		m.taskDuration, m.jobsLive, m.workers,
	)
	return m
}

// ObserveSubmit increments the submitted counter.
func (m *Metrics) ObserveSubmit() {
	if m == nil {
		return
	}
	m.submitted.Inc()
}

// ObserveTerminal increments the counter matching category and records the
// task's duration.
func (m *Metrics) ObserveTerminal(category asyncresult.Category, duration time.Duration) {
	if m == nil {
		return
	}
	switch category {
	case asyncresult.CategorySuccess:
		m.succeeded.Inc()
	case asyncresult.CategoryError:
		m.errored.Inc()
	case asyncresult.CategoryCancel:
		m.cancelled.Inc()
	case asyncresult.CategoryInterrupt:
		m.interrupted.Inc()
	}
	m.taskDuration.Observe(duration.Seconds())
}

// SetJobsLive reports the pool's current live-job count.
func (m *Metrics) SetJobsLive(n int) {
	if m == nil {
		return
	}
	m.jobsLive.Set(float64(n))
}

// SetWorkers reports the pool's current worker count.
func (m *Metrics) SetWorkers(n int) {
	if m == nil {
		return
	}
	m.workers.Set(float64(n))
}
