// Package engine implements the settlement state machines: matching a funding
// request to a counter-party, driving a transaction through its lifecycle,
// and resolving disputes. Every mutation runs inside one store transaction so
// the ledger movement and the status write commit or roll back together.
package engine

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"SettleCore/internal/ledger"
	"SettleCore/internal/notify"
	"SettleCore/internal/observability"
	"SettleCore/internal/store"
)

// Config carries the commission schedule and lifecycle timeouts.
type Config struct {
	// PendingTransactionTTL bounds how long a matched transaction may wait
	// for confirmation before the sweep fails it.
	PendingTransactionTTL time.Duration
	// DisputeTTL bounds how long a dispute may stay open before the sweep
	// closes it in the trader's favor.
	DisputeTTL time.Duration

	MerchantCommission   decimal.Decimal
	TraderCommission     decimal.Decimal
	TraderDisputePenalty decimal.Decimal
}

func DefaultConfig() Config {
	return Config{
		PendingTransactionTTL: 15 * time.Minute,
		DisputeTTL:            24 * time.Hour,
		MerchantCommission:    decimal.NewFromFloat(0.02),
		TraderCommission:      decimal.NewFromFloat(0.015),
		TraderDisputePenalty:  decimal.NewFromFloat(0.05),
	}
}

// Engine is the settlement engine. It is safe for concurrent use: correctness
// comes from database transaction scoping and row locks, not from in-process
// serialization.
type Engine struct {
	store   store.Store
	ledger  *ledger.Ledger
	cfg     Config
	notif   notify.Notifier
	events  notify.Publisher
	metrics *observability.Metrics
	log     zerolog.Logger

	// now is swapped out by tests.
	now func() time.Time
}

func New(st store.Store, led *ledger.Ledger, cfg Config, notif notify.Notifier, events notify.Publisher, metrics *observability.Metrics) *Engine {
	return &Engine{
		store:   st,
		ledger:  led,
		cfg:     cfg,
		notif:   notif,
		events:  events,
		metrics: metrics,
		log:     observability.NewLogger("engine"),
		now:     time.Now,
	}
}

// WithClock overrides the engine's clock; test hook.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}
