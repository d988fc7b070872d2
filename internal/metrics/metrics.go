// Package metrics exposes Prometheus collectors for the capture service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	capturesTotal              *prometheus.CounterVec
	captureDurationSeconds     *prometheus.HistogramVec
	tasksRetriedTotal          prometheus.Counter
	queueTasks                 *prometheus.GaugeVec
	healthyWorkers             prometheus.Gauge
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		capturesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pagesnap_captures_total",
				Help: "Total number of capture attempts, labeled by outcome.",
			},
			[]string{"status"},
		)

		captureDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pagesnap_capture_duration_seconds",
				Help:    "Histogram of capture attempt durations, labeled by outcome.",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 45},
			},
			[]string{"status"},
		)

		tasksRetriedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "pagesnap_tasks_retried_total",
				Help: "Total number of tasks requeued after a failed attempt.",
			},
		)

		queueTasks = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pagesnap_queue_tasks",
				Help: "Number of tasks per queue state.",
			},
			[]string{"state"},
		)

		healthyWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "pagesnap_healthy_workers",
				Help: "Number of workers currently able to take captures.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pagesnap_http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pagesnap_http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveCapture records one capture attempt.
func ObserveCapture(status string, duration time.Duration) {
	capturesTotal.WithLabelValues(status).Inc()
	captureDurationSeconds.WithLabelValues(status).Observe(duration.Seconds())
}

// ObserveRetry increments the retry counter.
func ObserveRetry() {
	tasksRetriedTotal.Inc()
}

// SetQueueTasks updates the queue occupancy gauges.
func SetQueueTasks(pending, processing, completed int) {
	queueTasks.WithLabelValues("pending").Set(float64(pending))
	queueTasks.WithLabelValues("processing").Set(float64(processing))
	queueTasks.WithLabelValues("completed").Set(float64(completed))
}

// SetHealthyWorkers updates the healthy worker gauge.
func SetHealthyWorkers(n int) {
	healthyWorkers.Set(float64(n))
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
