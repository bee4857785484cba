// Package metrics exposes the dashboard's prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups all collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	ledgerFailures  *prometheus.CounterVec
	upstream        *prometheus.CounterVec
	upstreamLatency *prometheus.HistogramVec
	historySource   *prometheus.CounterVec
	recorded        *prometheus.CounterVec
	notifications   prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ledgerFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lendscope_ledger_failures_total",
			Help: "Local ledger operations that failed and were degraded to no-ops.",
		}, []string{"op"}),
		upstream: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lendscope_upstream_requests_total",
			Help: "Upstream API calls by client and result.",
		}, []string{"client", "result"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lendscope_upstream_request_duration_seconds",
			Help:    "Latency of upstream API calls.",
			Buckets: prometheus.DefBuckets,
		}, []string{"client"}),
		historySource: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lendscope_history_source_total",
			Help: "History source chosen per position.",
		}, []string{"source"}),
		recorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lendscope_recorded_transactions_total",
			Help: "Transactions appended to the local ledger.",
		}, []string{"kind"}),
		notifications: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lendscope_notifications_total",
			Help: "Notifications published.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.ledgerFailures, m.upstream, m.upstreamLatency, m.historySource, m.recorded, m.notifications)
	}

	return m
}

// LedgerFailure counts a degraded ledger operation.
func (m *Metrics) LedgerFailure(op string) {
	if m == nil {
		return
	}
	m.ledgerFailures.WithLabelValues(op).Inc()
}

// ObserveUpstream records the outcome of one upstream call.
func (m *Metrics) ObserveUpstream(client string, started time.Time, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.upstream.WithLabelValues(client, result).Inc()
	m.upstreamLatency.WithLabelValues(client).Observe(time.Since(started).Seconds())
}

// HistorySource counts which history source served a position.
func (m *Metrics) HistorySource(source string) {
	if m == nil {
		return
	}
	m.historySource.WithLabelValues(source).Inc()
}

// Recorded counts a transaction appended locally.
func (m *Metrics) Recorded(kind string) {
	if m == nil {
		return
	}
	m.recorded.WithLabelValues(kind).Inc()
}

// Notified counts a published notification.
func (m *Metrics) Notified() {
	if m == nil {
		return
	}
	m.notifications.Inc()
}
