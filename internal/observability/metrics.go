package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the settlement engine.
type Metrics struct {
	// --- Matching ---
	MatchAttempts   *prometheus.CounterVec
	MatchFailures   *prometheus.CounterVec
	MatchDuration   prometheus.Histogram
	MatchCandidates prometheus.Histogram

	// --- Transaction lifecycle ---
	TransactionTransitions *prometheus.CounterVec
	TransactionAmount      *prometheus.HistogramVec
	PendingTransactions    prometheus.Gauge

	// --- Ledger ---
	LedgerOps           *prometheus.CounterVec
	LedgerOpErrors      *prometheus.CounterVec
	InvariantViolations prometheus.Counter

	// --- Disputes ---
	DisputesOpened   prometheus.Counter
	DisputesResolved *prometheus.CounterVec

	// --- Sweep ---
	SweepRuns      prometheus.Counter
	SweepSwept     *prometheus.CounterVec
	SweepRowErrors *prometheus.CounterVec
	SweepDuration  prometheus.Histogram

	// --- Chain ---
	ChainConfirmations *prometheus.CounterVec
	ChainRPCErrors     *prometheus.CounterVec
	ChainRPCDuration   *prometheus.HistogramVec

	// --- Notifications / events ---
	NotifyPublished prometheus.Counter
	NotifyDrops     prometheus.Counter
	EventsPublished *prometheus.CounterVec
	EventDrops      prometheus.Counter

	// --- Query API ---
	QueryRequests *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	opBuckets := []float64{
		0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0,
	}

	return &Metrics{
		MatchAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "settle_match_attempts_total",
			Help: "Funding requests entering the matcher",
		}, []string{"type", "payment_method"}),

		MatchFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "settle_match_failures_total",
			Help: "Match failures (no_counterparty, duplicate_pending, insufficient_balance)",
		}, []string{"reason"}),

		MatchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "settle_match_duration_seconds",
			Help:    "Time to match and open a transaction",
			Buckets: opBuckets,
		}),

		MatchCandidates: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "settle_match_candidates",
			Help:    "Eligible requisites considered per match",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		}),

		TransactionTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "settle_transaction_transitions_total",
			Help: "Lifecycle transitions applied",
		}, []string{"from", "to"}),

		TransactionAmount: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "settle_transaction_amount",
			Help:    "Transaction amounts in smallest currency unit",
			Buckets: prometheus.ExponentialBuckets(100, 10, 7),
		}, []string{"type"}),

		PendingTransactions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "settle_pending_transactions",
			Help: "Transactions currently PENDING (sweep-updated)",
		}),

		LedgerOps: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "settle_ledger_ops_total",
			Help: "Ledger movements by op",
		}, []string{"op"}),

		LedgerOpErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "settle_ledger_op_errors_total",
			Help: "Ledger movement failures by op",
		}, []string{"op"}),

		InvariantViolations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "settle_ledger_invariant_violations_total",
			Help: "Frozen-amount invariant violations (should stay at zero)",
		}),

		DisputesOpened: promauto.NewCounter(prometheus.CounterOpts{
			Name: "settle_disputes_opened_total",
			Help: "Disputes opened by merchants",
		}),

		DisputesResolved: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "settle_disputes_resolved_total",
			Help: "Disputes closed by resolution path",
		}, []string{"path", "winner"}),

		SweepRuns: promauto.NewCounter(prometheus.CounterOpts{
			Name: "settle_sweep_runs_total",
			Help: "Sweep cycles completed",
		}),

		SweepSwept: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "settle_sweep_swept_total",
			Help: "Expired rows force-resolved by the sweep",
		}, []string{"collection"}),

		SweepRowErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "settle_sweep_row_errors_total",
			Help: "Per-row sweep failures (isolated, retried next cycle)",
		}, []string{"collection"}),

		SweepDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "settle_sweep_duration_seconds",
			Help:    "Duration of one sweep cycle",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 15.0},
		}),

		ChainConfirmations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "settle_chain_confirmations_total",
			Help: "Blockchain transfers finalized",
		}, []string{"type", "status"}),

		ChainRPCErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "settle_chain_rpc_errors_total",
			Help: "Chain RPC failures by method",
		}, []string{"method"}),

		ChainRPCDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "settle_chain_rpc_duration_seconds",
			Help:    "Chain RPC call latency",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		}, []string{"method"}),

		NotifyPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "settle_notify_published_total",
			Help: "User notifications published",
		}),

		NotifyDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "settle_notify_drops_total",
			Help: "Notifications dropped on full channel",
		}),

		EventsPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "settle_events_published_total",
			Help: "Outbound settlement events published",
		}, []string{"kind"}),

		EventDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "settle_event_drops_total",
			Help: "Outbound events dropped on full channel",
		}),

		QueryRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "settle_api_requests_total",
			Help: "API requests by endpoint",
		}, []string{"endpoint"}),

		QueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "settle_api_request_duration_seconds",
			Help:    "API request latency by endpoint",
			Buckets: opBuckets,
		}, []string{"endpoint"}),
	}
}
