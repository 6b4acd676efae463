// Package metrics exports generation, queue and HTTP collectors to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector the service records. A nil *Metrics is a
// valid no-op recorder.
type Metrics struct {
	registry *prometheus.Registry

	runs           *prometheus.CounterVec
	runDuration    *prometheus.HistogramVec
	passDuration   *prometheus.HistogramVec
	maskedFraction *prometheus.HistogramVec

	queueWaiting  prometheus.Gauge
	queueActive   prometheus.Gauge
	queueRejected prometheus.Counter

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vamp_runs_total",
			Help: "Completed orchestrations by mode and result",
		}, []string{"mode", "result"}),

		runDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vamp_run_duration_seconds",
			Help:    "Orchestration duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		}, []string{"mode"}),

		passDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vamp_pass_duration_seconds",
			Help:    "Generation pass duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}, []string{"mode", "stage"}),

		maskedFraction: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vamp_masked_fraction",
			Help:    "Fraction of token positions regenerated per pass",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}, []string{"stage"}),

		queueWaiting: factory.NewGauge(prometheus.GaugeOpts{
			Name: "vamp_queue_waiting",
			Help: "Generation jobs waiting for a worker",
		}),

		queueActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "vamp_queue_active",
			Help: "Generation jobs running",
		}),

		queueRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "vamp_queue_rejected_total",
			Help: "Generation jobs rejected because the queue was full",
		}),

		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vamp_http_requests_total",
			Help: "HTTP requests by route and status",
		}, []string{"method", "route", "status"}),

		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vamp_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// ObservePass records one generation pass.
func (m *Metrics) ObservePass(mode, stage string, duration time.Duration, maskedFraction float64) {
	if m == nil {
		return
	}
	m.passDuration.WithLabelValues(mode, stage).Observe(duration.Seconds())
	m.maskedFraction.WithLabelValues(stage).Observe(maskedFraction)
}

// ObserveRun records a finished orchestration.
func (m *Metrics) ObserveRun(mode string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.runs.WithLabelValues(mode, result).Inc()
	m.runDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// ObserveQueue sets the queue occupancy gauges.
func (m *Metrics) ObserveQueue(waiting, active int) {
	if m == nil {
		return
	}
	m.queueWaiting.Set(float64(waiting))
	m.queueActive.Set(float64(active))
}

// ObserveRejected counts a job turned away by a full queue.
func (m *Metrics) ObserveRejected() {
	if m == nil {
		return
	}
	m.queueRejected.Inc()
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
