// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	apperrors "github.com/copytrade-ledger/internal/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "copytrade"

// Result labels for ledger operations
const (
	ResultOK       = "ok"
	ResultRejected = "rejected"
	ResultError    = "error"
)

// Metrics holds the service collectors and their registry
type Metrics struct {
	registry *prometheus.Registry

	LedgerOps      *prometheus.CounterVec
	HTTPDuration   *prometheus.HistogramVec
	NotifyResults  *prometheus.CounterVec
	NotifyDropped  prometheus.Counter
	SnapshotWrites *prometheus.CounterVec
	FeedUpdates    *prometheus.CounterVec
	ActiveSessions prometheus.Gauge
}

// New creates and registers all collectors on a fresh registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		LedgerOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_operations_total",
			Help:      "Ledger operations by operation and result.",
		}, []string{"operation", "result"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		NotifyResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification deliveries by sink and result.",
		}, []string{"sink", "result"}),
		NotifyDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_dropped_total",
			Help:      "Notifications dropped because the queue was full.",
		}),
		SnapshotWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_writes_total",
			Help:      "Snapshot store writes by operation and result.",
		}, []string{"operation", "result"}),
		FeedUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_updates_total",
			Help:      "P&L feed messages by outcome.",
		}, []string{"outcome"}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Connected wallet sessions.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.LedgerOps,
		m.HTTPDuration,
		m.NotifyResults,
		m.NotifyDropped,
		m.SnapshotWrites,
		m.FeedUpdates,
		m.ActiveSessions,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	// responses are compressed by the API middleware
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{DisableCompression: true})
}

// Result classifies err for the result label
func Result(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case apperrors.IsUserError(err):
		return ResultRejected
	default:
		return ResultError
	}
}

// ObserveLedgerOp counts one ledger operation
func (m *Metrics) ObserveLedgerOp(operation string, err error) {
	m.LedgerOps.WithLabelValues(operation, Result(err)).Inc()
}

// ObserveNotify counts one sink delivery
func (m *Metrics) ObserveNotify(sink string, err error) {
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	m.NotifyResults.WithLabelValues(sink, result).Inc()
}

// ObserveSnapshotWrite counts one snapshot store write
func (m *Metrics) ObserveSnapshotWrite(operation string, err error) {
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	m.SnapshotWrites.WithLabelValues(operation, result).Inc()
}

// ObserveHTTP records one request
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	m.HTTPDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
