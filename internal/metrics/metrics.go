// Package metrics provides Prometheus instrumentation for the simulation
// engine and its dashboard server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// EventsProcessedTotal counts dispatched events, partitioned by kind.
	EventsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "efxsim_events_processed_total",
		Help: "Total number of events dispatched by the processor",
	}, []string{"event_kind"})

	// RecordsEmittedTotal counts output records, partitioned by record type.
	RecordsEmittedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "efxsim_records_emitted_total",
		Help: "Total number of output records emitted by handlers",
	}, []string{"record_type"})

	// DispatchLatency tracks per-event handler latency.
	DispatchLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "efxsim_dispatch_latency_seconds",
		Help:    "Per-event handler dispatch latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"event_kind"})

	// OpenLots tracks the current open-lot count per risk pair.
	OpenLots = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "efxsim_open_lots",
		Help: "Number of currently open lots per risk pair",
	}, []string{"risk_pair"})

	// ClosedLots tracks the cumulative closed-lot count per risk pair.
	ClosedLots = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "efxsim_closed_lots",
		Help: "Number of closed lots per risk pair",
	}, []string{"risk_pair"})

	// WebSocketClients tracks connected dashboard WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "efxsim_dashboard_websocket_clients",
		Help: "Number of connected dashboard WebSocket clients",
	})

	// HTTPRequestsTotal counts dashboard HTTP requests by method, path,
	// and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "efxsim_http_requests_total",
		Help: "Total dashboard HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks dashboard request duration by method and
	// path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "efxsim_http_request_duration_seconds",
		Help:    "Dashboard HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
