package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the engine's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	bidsTotal           *prometheus.CounterVec
	lockFailuresTotal   *prometheus.CounterVec
	settlementsTotal    *prometheus.CounterVec
	ledgerOpsTotal      *prometheus.CounterVec
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	sweepClosedTotal    prometheus.Counter
}

// NewRegistry creates a registry pre-loaded with the Go and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// New registers every collector on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		bidsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auction_bids_total",
				Help: "Total number of bid attempts by result",
			},
			[]string{"result"},
		),
		lockFailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auction_lock_failures_total",
				Help: "Total number of lock acquisitions that exhausted their retries",
			},
			[]string{"scope"},
		),
		settlementsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auction_settlements_total",
				Help: "Total number of auction closes by outcome",
			},
			[]string{"outcome"},
		),
		ledgerOpsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auction_ledger_operations_total",
				Help: "Total number of ledger operations",
			},
			[]string{"kind", "result"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auction_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "auction_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		sweepClosedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "auction_sweep_closed_total",
			Help: "Total number of expired auctions closed by the sweeper",
		}),
	}
}

func (m *Metrics) RecordBid(result string) {
	if m == nil {
		return
	}
	m.bidsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordLockFailure(scope string) {
	if m == nil {
		return
	}
	m.lockFailuresTotal.WithLabelValues(scope).Inc()
}

func (m *Metrics) RecordSettlement(outcome string) {
	if m == nil {
		return
	}
	m.settlementsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordLedgerOperation(kind, result string) {
	if m == nil {
		return
	}
	m.ledgerOpsTotal.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) RecordHTTPRequest(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, route, status).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) RecordSweepClosed(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.sweepClosedTotal.Add(float64(n))
}
