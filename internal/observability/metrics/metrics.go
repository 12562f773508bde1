// Package metrics exposes Prometheus collectors for the HTTP API, the
// verification workflow and the asynchronous job processor.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"QVeritas/internal/job"
)

const namespace = "qveritas"

// Registry owns an isolated Prometheus registry and the collectors
// recorded by the service.
type Registry struct {
	reg *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpErrors   *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec

	verifications       *prometheus.CounterVec
	verificationLatency *prometheus.HistogramVec

	jobs *prometheus.CounterVec
}

// New builds a registry with the service collectors plus the Go runtime and
// process collectors.
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"handler", "method", "code"}),
		httpErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_errors_total",
			Help:      "HTTP requests answered with a 5xx status.",
		}, []string{"handler", "method"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"handler", "method"}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "veritas",
			Name:      "verifications_total",
			Help:      "VerifyAndProve calls by computation type and outcome.",
		}, []string{"computation_type", "result"}),
		verificationLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "veritas",
			Name:      "verification_duration_seconds",
			Help:      "VerifyAndProve latency in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"computation_type"}),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "transitions_total",
			Help:      "Job state transitions recorded by the processor.",
		}, []string{"computation_type", "status"}),
	}
	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.httpRequests,
		r.httpErrors,
		r.httpLatency,
		r.verifications,
		r.verificationLatency,
		r.jobs,
	)
	return r
}

// ObserveHTTPRequest records metrics about an HTTP request lifecycle.
func (r *Registry) ObserveHTTPRequest(handler, method string, status int, duration time.Duration) {
	r.httpRequests.WithLabelValues(handler, method, strconv.Itoa(status)).Inc()
	if status >= 500 {
		r.httpErrors.WithLabelValues(handler, method).Inc()
	}
	r.httpLatency.WithLabelValues(handler, method).Observe(duration.Seconds())
}

// ObserveVerification records one VerifyAndProve outcome.
func (r *Registry) ObserveVerification(computationType string, valid bool, elapsed time.Duration) {
	result := "valid"
	if !valid {
		result = "failed"
	}
	r.verifications.WithLabelValues(computationType, result).Inc()
	r.verificationLatency.WithLabelValues(computationType).Observe(elapsed.Seconds())
}

// ObserveJob records a job reaching the given status.
func (r *Registry) ObserveJob(computationType string, status job.Status) {
	r.jobs.WithLabelValues(computationType, string(status)).Inc()
}

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// Handler exposes the metrics in Prometheus text exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}
