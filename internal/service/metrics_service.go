package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/academy-checkin-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP
// surface and the check-in pipeline.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	checkinsTotal   *prometheus.CounterVec
	checkinFailures *prometheus.CounterVec
	matchAttempts   *prometheus.CounterVec
	matchSimilarity prometheus.Histogram
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

	checkinsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkins_total",
		Help: "Total recorded check-ins",
	}, []string{"method", "mode"})

	checkinFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkin_failures_total",
		Help: "Total rejected check-ins by reason",
	}, []string{"reason"})

	matchAttempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "biometric_match_attempts_total",
		Help: "Total biometric match attempts by result",
	}, []string{"result"})

	matchSimilarity := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "biometric_match_similarity",
		Help:    "Similarity score distribution of biometric matches",
		Buckets: prometheus.LinearBuckets(0, 0.1, 11),
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, checkinsTotal, checkinFailures, matchAttempts, matchSimilarity, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		checkinsTotal:   checkinsTotal,
		checkinFailures: checkinFailures,
		matchAttempts:   matchAttempts,
		matchSimilarity: matchSimilarity,
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

// RecordCheckin counts a successful check-in.
func (m *MetricsService) RecordCheckin(method models.CheckinMethod, mode models.CheckinMode) {
	if m == nil {
		return
	}
	m.checkinsTotal.WithLabelValues(string(method), string(mode)).Inc()
}

// RecordCheckinFailure counts a rejected check-in by reason code.
func (m *MetricsService) RecordCheckinFailure(reason models.EligibilityReason) {
	if m == nil {
		return
	}
	m.checkinFailures.WithLabelValues(string(reason)).Inc()
}

// ObserveMatch records a biometric match attempt and its similarity.
func (m *MetricsService) ObserveMatch(result models.AttemptResult, similarity float64) {
	if m == nil {
		return
	}
	m.matchAttempts.WithLabelValues(string(result)).Inc()
	m.matchSimilarity.Observe(similarity)
}
