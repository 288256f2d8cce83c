package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the API and the job pipeline.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	jobDuration     *prometheus.HistogramVec
	jobTotal        *prometheus.CounterVec
	verifications   *prometheus.CounterVec
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	jobDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "issuance_job_duration_seconds",
		Help:    "Duration of pipeline job executions",
		Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"queue", "type"})

	jobTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "issuance_jobs_total",
		Help: "Pipeline job executions by outcome",
	}, []string{"queue", "type", "outcome"})

	verifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "credential_verifications_total",
		Help: "Verification lookups by method and validity",
	}, []string{"method", "valid"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, jobDuration, jobTotal, verifications, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		jobDuration:     jobDuration,
		jobTotal:        jobTotal,
		verifications:   verifications,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// ObserveJob implements jobs.Observer.
func (m *MetricsService) ObserveJob(queue, jobType, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.jobDuration.WithLabelValues(queue, jobType).Observe(duration.Seconds())
	m.jobTotal.WithLabelValues(queue, jobType, outcome).Inc()
}

// RecordVerification counts a verification lookup.
func (m *MetricsService) RecordVerification(method string, valid bool) {
	if m == nil {
		return
	}
	m.verifications.WithLabelValues(method, fmt.Sprintf("%t", valid)).Inc()
}
