// Package sweep runs the reconciliation loop: a periodic scan that
// force-resolves anything whose time window elapsed without an explicit
// lifecycle action. Expired transactions fail and release their reservation,
// expired disputes close in the trader's favor, and expired transfers are
// cancelled. The sweep is the backstop that guarantees no reservation is held
// forever.
package sweep

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"SettleCore/internal/chain"
	"SettleCore/internal/engine"
	"SettleCore/internal/model"
	"SettleCore/internal/observability"
	"SettleCore/internal/store"
)

const defaultBatchSize = 100

// Sweeper scans for expired rows and resolves each in its own database
// transaction. One poisoned row must not stall the rest of the batch: a
// per-row failure is logged and counted, and the row is retried on the next
// cycle.
type Sweeper struct {
	store     store.Store
	engine    *engine.Engine
	confirmer *chain.Confirmer
	metrics   *observability.Metrics
	log       zerolog.Logger

	interval  time.Duration
	batchSize int
	now       func() time.Time
}

func New(st store.Store, eng *engine.Engine, conf *chain.Confirmer, metrics *observability.Metrics, interval time.Duration) *Sweeper {
	return &Sweeper{
		store:     st,
		engine:    eng,
		confirmer: conf,
		metrics:   metrics,
		log:       observability.NewLogger("sweep"),
		interval:  interval,
		batchSize: defaultBatchSize,
		now:       time.Now,
	}
}

// WithClock overrides the sweeper's clock; test hook.
func (s *Sweeper) WithClock(now func() time.Time) *Sweeper {
	s.now = now
	return s
}

// Run sweeps on a fixed interval until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info().Dur("interval", s.interval).Msg("sweeper started")
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("sweeper stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep executes one full cycle over all three collections.
func (s *Sweeper) Sweep(ctx context.Context) {
	start := time.Now()
	now := s.now()

	swept := s.sweepTransactions(ctx, now)
	swept += s.sweepDisputes(ctx, now)
	swept += s.sweepTransfers(ctx, now)

	if s.metrics != nil {
		s.metrics.SweepRuns.Inc()
		s.metrics.SweepDuration.Observe(time.Since(start).Seconds())
	}
	if swept > 0 {
		s.log.Info().Int("swept", swept).Dur("took", time.Since(start)).Msg("sweep cycle done")
	}
}

func (s *Sweeper) sweepTransactions(ctx context.Context, now time.Time) int {
	var expired []*model.Transaction
	err := s.store.ExecTx(ctx, func(tx store.Tx) error {
		var err error
		expired, err = tx.Transactions().ListExpiredPending(ctx, now, s.batchSize)
		return err
	})
	if err != nil {
		s.log.Error().Err(err).Msg("listing expired transactions failed")
		return 0
	}

	swept := 0
	for _, txn := range expired {
		if s.resolve(ctx, "transactions", txn.ID, func() error {
			return s.engine.Expire(ctx, txn.ID)
		}) {
			swept++
		}
	}
	return swept
}

func (s *Sweeper) sweepDisputes(ctx context.Context, now time.Time) int {
	var expired []*model.Dispute
	err := s.store.ExecTx(ctx, func(tx store.Tx) error {
		var err error
		expired, err = tx.Disputes().ListExpiredPending(ctx, now, s.batchSize)
		return err
	})
	if err != nil {
		s.log.Error().Err(err).Msg("listing expired disputes failed")
		return 0
	}

	swept := 0
	for _, d := range expired {
		if s.resolve(ctx, "disputes", d.ID, func() error {
			return s.engine.DefaultCloseDispute(ctx, d.ID)
		}) {
			swept++
		}
	}
	return swept
}

func (s *Sweeper) sweepTransfers(ctx context.Context, now time.Time) int {
	var expired []*model.BlockchainTransfer
	err := s.store.ExecTx(ctx, func(tx store.Tx) error {
		var err error
		expired, err = tx.Transfers().ListExpiredPending(ctx, now, s.batchSize)
		return err
	})
	if err != nil {
		s.log.Error().Err(err).Msg("listing expired transfers failed")
		return 0
	}

	swept := 0
	for _, t := range expired {
		if s.resolve(ctx, "transfers", t.ID, func() error {
			return s.confirmer.CancelExpired(ctx, t.ID)
		}) {
			swept++
		}
	}
	return swept
}

// resolve runs one row's resolution and isolates its failure. A Conflict
// means a user action raced the sweep and won; that row is simply no longer
// ours to resolve.
func (s *Sweeper) resolve(ctx context.Context, collection string, id uuid.UUID, fn func() error) bool {
	err := fn()
	switch {
	case err == nil:
		if s.metrics != nil {
			s.metrics.SweepSwept.WithLabelValues(collection).Inc()
		}
		return true
	case model.IsConflict(err):
		return false
	default:
		if s.metrics != nil {
			s.metrics.SweepRowErrors.WithLabelValues(collection).Inc()
		}
		s.log.Error().Err(err).
			Str("collection", collection).
			Str("id", id.String()).
			Msg("sweep row failed, will retry next cycle")
		return false
	}
}
