package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"SettleCore/internal/ledger"
	"SettleCore/internal/model"
	"SettleCore/internal/notify"
	"SettleCore/internal/store"
)

// CreateFundingRequest matches a merchant funding request to an eligible
// trader requisite, reserves the obligor's funds, and opens the transaction —
// all inside one store transaction, so a crash can never leave a reservation
// without a transaction row.
//
// Selection policy: among requisites whose payment method matches and whose
// [min,max] window contains the amount, lowest priority wins, ties broken by
// oldest created_at. A requisite already named by a PENDING transaction is
// busy and skipped, as is one whose daily cap would be exceeded.
func (e *Engine) CreateFundingRequest(
	ctx context.Context,
	merchantID uuid.UUID,
	amount int64,
	method model.PaymentMethod,
	typ model.TransactionType,
) (*model.Transaction, error) {
	if amount <= 0 {
		return nil, model.BadRequestf("amount must be positive")
	}

	start := e.now()
	if e.metrics != nil {
		e.metrics.MatchAttempts.WithLabelValues(string(typ), string(method)).Inc()
	}

	var txn *model.Transaction
	err := e.store.ExecTx(ctx, func(tx store.Tx) error {
		// At most one outstanding request per (merchant, type).
		dup, err := tx.Transactions().ExistsPendingByMerchantAndType(ctx, merchantID, typ)
		if err != nil {
			return err
		}
		if dup {
			e.countMatchFailure("duplicate_pending")
			return model.Conflictf("merchant already has a pending %s request", typ)
		}

		// A merchant funding out commits its own balance; check before any
		// reservation so a failed request never leaves the ledger touched.
		if typ == model.TransactionTypePayOut {
			merchant, err := tx.Accounts().GetForUpdate(ctx, merchantID)
			if err != nil {
				return err
			}
			need := ledger.DebitWithPenalty(amount, e.cfg.MerchantCommission)
			if merchant.Available() < need {
				e.countMatchFailure("insufficient_balance")
				return model.BadRequestf("insufficient balance: need %d, available %d", need, merchant.Available())
			}
		}

		requisite, err := e.pickRequisite(ctx, tx, method, amount)
		if err != nil {
			return err
		}

		now := e.now()
		txn = &model.Transaction{
			ID:            uuid.New(),
			MerchantID:    merchantID,
			TraderID:      requisite.TraderID,
			RequisiteID:   requisite.ID,
			Amount:        amount,
			PaymentMethod: method,
			Type:          typ,
			Status:        model.TransactionStatusPending,
			ExpiresAt:     now.Add(e.cfg.PendingTransactionTTL),
		}

		ref := ledger.TransactionRef(txn.ID)
		if err := e.ledger.Reserve(ctx, tx, ref, txn.Obligor(), amount); err != nil {
			return err
		}

		return tx.Transactions().Create(ctx, txn)
	})
	if err != nil {
		return nil, err
	}

	if e.metrics != nil {
		e.metrics.MatchDuration.Observe(time.Since(start).Seconds())
		e.metrics.TransactionAmount.WithLabelValues(string(typ)).Observe(float64(amount))
	}
	e.log.Info().
		Str("transaction_id", txn.ID.String()).
		Str("merchant_id", merchantID.String()).
		Str("trader_id", txn.TraderID.String()).
		Int64("amount", amount).
		Str("type", string(typ)).
		Msg("transaction opened")

	e.notif.Notify(txn.TraderID, "New funding request assigned to your requisite")
	e.events.Publish(notify.EventTransactionOpened, txn.ID, txn)

	return txn, nil
}

// pickRequisite walks the ordered candidate list and returns the first
// requisite that is neither busy nor over its daily cap.
func (e *Engine) pickRequisite(ctx context.Context, tx store.Tx, method model.PaymentMethod, amount int64) (*model.Requisite, error) {
	candidates, err := tx.Requisites().ListEligible(ctx, method, amount)
	if err != nil {
		return nil, err
	}
	if e.metrics != nil {
		e.metrics.MatchCandidates.Observe(float64(len(candidates)))
	}

	dayStart := e.now().Truncate(24 * time.Hour)
	for _, req := range candidates {
		busy, err := tx.Transactions().ExistsPendingByRequisite(ctx, req.ID)
		if err != nil {
			return nil, err
		}
		if busy {
			continue
		}

		if req.MaxDailyAmount > 0 {
			used, err := tx.Transactions().SumByRequisiteSince(ctx, req.ID, dayStart)
			if err != nil {
				return nil, err
			}
			if used+amount > req.MaxDailyAmount {
				continue
			}
		}

		return req, nil
	}

	e.countMatchFailure("no_counterparty")
	return nil, model.NotFoundf("no eligible counter-party")
}

func (e *Engine) countMatchFailure(reason string) {
	if e.metrics != nil {
		e.metrics.MatchFailures.WithLabelValues(reason).Inc()
	}
}
