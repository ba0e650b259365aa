package engine

import (
	"context"

	"github.com/google/uuid"

	"SettleCore/internal/ledger"
	"SettleCore/internal/model"
	"SettleCore/internal/notify"
	"SettleCore/internal/store"
)

// Confirm settles a pending transaction on behalf of its trader.
//
// The row lock taken by GetForUpdate serializes racing confirms: exactly one
// caller observes PENDING; the loser sees SUCCESS and gets Conflict, so the
// ledger is settled exactly once.
//
// Settlement arithmetic by type:
//   - PAY_IN:  release the trader's reservation, credit the merchant
//     amount*(1-merchant_commission).
//   - PAY_OUT: release the merchant's reservation, debit the merchant
//     amount*(1+merchant_commission), credit the trader
//     amount*(1-trader_commission) to make the trader whole for the fiat
//     paid out.
func (e *Engine) Confirm(ctx context.Context, transactionID, traderID uuid.UUID) error {
	var merchantID uuid.UUID
	err := e.store.ExecTx(ctx, func(tx store.Tx) error {
		txn, err := tx.Transactions().GetForUpdate(ctx, transactionID)
		if err != nil {
			return err
		}
		// Callers who are not the named trader are told nothing exists.
		if txn.TraderID != traderID {
			return model.NotFoundf("transaction")
		}
		if txn.Status != model.TransactionStatusPending {
			return model.Conflictf("transaction is %s, not %s", txn.Status, model.TransactionStatusPending)
		}

		ref := ledger.TransactionRef(txn.ID)
		if err := e.ledger.Release(ctx, tx, ref, txn.Obligor(), txn.Amount); err != nil {
			return err
		}

		switch txn.Type {
		case model.TransactionTypePayIn:
			if err := e.ledger.SettleCredit(ctx, tx, ref, txn.MerchantID, txn.Amount, e.cfg.MerchantCommission); err != nil {
				return err
			}
		case model.TransactionTypePayOut:
			if err := e.ledger.SettleDebit(ctx, tx, ref, txn.MerchantID, txn.Amount, e.cfg.MerchantCommission); err != nil {
				return err
			}
			if err := e.ledger.SettleCredit(ctx, tx, ref, txn.TraderID, txn.Amount, e.cfg.TraderCommission); err != nil {
				return err
			}
		default:
			return model.BadRequestf("unknown transaction type %s", txn.Type)
		}

		merchantID = txn.MerchantID
		return tx.Transactions().UpdateStatus(ctx, txn.ID, model.TransactionStatusSuccess)
	})
	if err != nil {
		return err
	}

	e.countTransition(model.TransactionStatusPending, model.TransactionStatusSuccess)
	e.log.Info().Str("transaction_id", transactionID.String()).Msg("transaction confirmed")
	e.notif.Notify(merchantID, "Your funding request was confirmed")
	e.events.Publish(notify.EventTransactionConfirmed, transactionID, nil)
	return nil
}

// Expire fails a pending transaction whose window has elapsed and returns the
// reservation to the obligor. Invoked exclusively by the sweep.
func (e *Engine) Expire(ctx context.Context, transactionID uuid.UUID) error {
	var obligor uuid.UUID
	err := e.store.ExecTx(ctx, func(tx store.Tx) error {
		txn, err := tx.Transactions().GetForUpdate(ctx, transactionID)
		if err != nil {
			return err
		}
		if txn.Status != model.TransactionStatusPending {
			return model.Conflictf("transaction is %s, not %s", txn.Status, model.TransactionStatusPending)
		}
		if !txn.Expired(e.now()) {
			return model.Conflictf("transaction has not expired yet")
		}

		obligor = txn.Obligor()
		ref := ledger.TransactionRef(txn.ID)
		if err := e.ledger.Release(ctx, tx, ref, obligor, txn.Amount); err != nil {
			return err
		}

		return tx.Transactions().UpdateStatus(ctx, txn.ID, model.TransactionStatusFailed)
	})
	if err != nil {
		return err
	}

	e.countTransition(model.TransactionStatusPending, model.TransactionStatusFailed)
	e.log.Info().Str("transaction_id", transactionID.String()).Msg("transaction expired")
	e.notif.Notify(obligor, "Funding request expired without confirmation")
	e.events.Publish(notify.EventTransactionExpired, transactionID, nil)
	return nil
}

// DeleteTransaction physically removes a transaction record. This is an
// administrative operation, distinct from lifecycle termination; an open
// transaction still holds a reservation and cannot be deleted.
func (e *Engine) DeleteTransaction(ctx context.Context, transactionID uuid.UUID) error {
	return e.store.ExecTx(ctx, func(tx store.Tx) error {
		txn, err := tx.Transactions().Get(ctx, transactionID)
		if err != nil {
			return err
		}
		if txn.Status == model.TransactionStatusPending || txn.Status == model.TransactionStatusDisputed {
			return model.Conflictf("cannot delete an open transaction")
		}
		return tx.Transactions().Delete(ctx, transactionID)
	})
}

func (e *Engine) countTransition(from, to model.TransactionStatus) {
	if e.metrics != nil {
		e.metrics.TransactionTransitions.WithLabelValues(string(from), string(to)).Inc()
	}
}
