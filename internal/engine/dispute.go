package engine

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"SettleCore/internal/ledger"
	"SettleCore/internal/model"
	"SettleCore/internal/notify"
	"SettleCore/internal/store"
)

// OpenDispute attaches a dispute to a completed transaction, re-reserving the
// trader's amount and marking the transaction DISPUTED. Only the transaction's
// merchant may open one, and only after the transaction reached SUCCESS.
func (e *Engine) OpenDispute(
	ctx context.Context,
	transactionID, merchantID uuid.UUID,
	description string,
	imageURLs []string,
) (*model.Dispute, error) {
	var dispute *model.Dispute
	var traderID uuid.UUID
	err := e.store.ExecTx(ctx, func(tx store.Tx) error {
		txn, err := tx.Transactions().GetForUpdate(ctx, transactionID)
		if err != nil {
			return err
		}
		if txn.MerchantID != merchantID {
			return model.NotFoundf("transaction")
		}
		if txn.Status != model.TransactionStatusSuccess {
			return model.Conflictf("transaction is %s; disputes require a completed transaction", txn.Status)
		}

		now := e.now()
		dispute = &model.Dispute{
			ID:            uuid.New(),
			TransactionID: txn.ID,
			Description:   description,
			ImageURLs:     imageURLs,
			Status:        model.DisputeStatusPending,
			ExpiresAt:     now.Add(e.cfg.DisputeTTL),
		}
		// The unique index on transaction_id rejects a second dispute here.
		if err := tx.Disputes().Create(ctx, dispute); err != nil {
			return err
		}

		// Confirm released the trader's reservation; the dispute re-freezes
		// the contested amount until resolution.
		traderID = txn.TraderID
		ref := ledger.DisputeRef(dispute.ID)
		if err := e.ledger.Reserve(ctx, tx, ref, traderID, txn.Amount); err != nil {
			return err
		}

		return tx.Transactions().UpdateStatus(ctx, txn.ID, model.TransactionStatusDisputed)
	})
	if err != nil {
		return nil, err
	}

	if e.metrics != nil {
		e.metrics.DisputesOpened.Inc()
	}
	e.countTransition(model.TransactionStatusSuccess, model.TransactionStatusDisputed)
	e.log.Info().
		Str("dispute_id", dispute.ID.String()).
		Str("transaction_id", transactionID.String()).
		Msg("dispute opened")
	e.notif.Notify(traderID, "A dispute was opened against your transaction")
	e.events.Publish(notify.EventDisputeOpened, dispute.ID, dispute)
	return dispute, nil
}

// TraderReply appends the trader's narrative and evidence to a pending
// dispute. Contributions are append-only and the trader may contribute at
// most once before resolution.
func (e *Engine) TraderReply(
	ctx context.Context,
	disputeID, traderID uuid.UUID,
	description string,
	imageURLs []string,
) error {
	return e.store.ExecTx(ctx, func(tx store.Tx) error {
		d, err := tx.Disputes().GetForUpdate(ctx, disputeID)
		if err != nil {
			return err
		}
		txn, err := tx.Transactions().Get(ctx, d.TransactionID)
		if err != nil {
			return err
		}
		if txn.TraderID != traderID {
			return model.NotFoundf("dispute")
		}
		if d.Status != model.DisputeStatusPending {
			return model.Conflictf("dispute is closed")
		}
		if d.TraderReplied {
			return model.Conflictf("trader has already replied")
		}

		if description != "" {
			d.Description = strings.TrimSpace(d.Description + "\n\n" + description)
		}
		d.ImageURLs = append(d.ImageURLs, imageURLs...)
		d.TraderReplied = true
		return tx.Disputes().Update(ctx, d)
	})
}

// TraderAccepts resolves a dispute with the trader accepting fault: the
// trader's reservation is released, the trader pays amount*(1+penalty), and
// the merchant is credited amount*(1-merchant_commission).
func (e *Engine) TraderAccepts(ctx context.Context, disputeID, traderID uuid.UUID) error {
	var merchantID uuid.UUID
	err := e.store.ExecTx(ctx, func(tx store.Tx) error {
		d, txn, err := e.pendingDispute(ctx, tx, disputeID)
		if err != nil {
			return err
		}
		if txn.TraderID != traderID {
			return model.NotFoundf("dispute")
		}

		merchantID = txn.MerchantID
		return e.closeMerchantWins(ctx, tx, d, txn)
	})
	if err != nil {
		return err
	}

	e.recordResolution("trader_accepted", "merchant")
	e.notif.Notify(merchantID, "The trader accepted your dispute; funds have been reassigned")
	e.events.Publish(notify.EventDisputeResolved, disputeID, nil)
	return nil
}

// SupportRules resolves a dispute by a binding support ruling. A vindicated
// trader only gets the reservation released — no penalty; a winning merchant
// triggers the same arithmetic as TraderAccepts.
func (e *Engine) SupportRules(ctx context.Context, disputeID, winnerID uuid.UUID) error {
	var winnerIsTrader bool
	var traderID, merchantID uuid.UUID
	err := e.store.ExecTx(ctx, func(tx store.Tx) error {
		d, txn, err := e.pendingDispute(ctx, tx, disputeID)
		if err != nil {
			return err
		}
		if winnerID != txn.TraderID && winnerID != txn.MerchantID {
			return model.BadRequestf("winner must be one of the transaction parties")
		}

		traderID, merchantID = txn.TraderID, txn.MerchantID
		winnerIsTrader = winnerID == txn.TraderID
		if winnerIsTrader {
			return e.closeTraderWins(ctx, tx, d, txn)
		}
		return e.closeMerchantWins(ctx, tx, d, txn)
	})
	if err != nil {
		return err
	}

	if winnerIsTrader {
		e.recordResolution("support_ruled", "trader")
		e.notif.Notify(traderID, "Support ruled in your favor; the dispute is closed")
		e.notif.Notify(merchantID, "Support ruled against your dispute")
	} else {
		e.recordResolution("support_ruled", "merchant")
		e.notif.Notify(merchantID, "Support ruled in your favor; funds have been reassigned")
		e.notif.Notify(traderID, "Support ruled against you; a dispute penalty was applied")
	}
	e.events.Publish(notify.EventDisputeResolved, disputeID, nil)
	return nil
}

// DefaultCloseDispute force-closes an expired dispute in the trader's favor.
// Invoked exclusively by the sweep: an unresolved dispute defaults to the
// trader, so only the reservation is released and no penalty applies.
func (e *Engine) DefaultCloseDispute(ctx context.Context, disputeID uuid.UUID) error {
	var traderID, merchantID uuid.UUID
	err := e.store.ExecTx(ctx, func(tx store.Tx) error {
		d, txn, err := e.pendingDispute(ctx, tx, disputeID)
		if err != nil {
			return err
		}
		if !d.Expired(e.now()) {
			return model.Conflictf("dispute has not expired yet")
		}

		traderID, merchantID = txn.TraderID, txn.MerchantID
		return e.closeTraderWins(ctx, tx, d, txn)
	})
	if err != nil {
		return err
	}

	e.recordResolution("default_closed", "trader")
	e.notif.Notify(traderID, "An expired dispute was closed in your favor")
	e.notif.Notify(merchantID, "Your dispute expired without resolution and was closed")
	e.events.Publish(notify.EventDisputeResolved, disputeID, nil)
	return nil
}

// pendingDispute loads and locks a dispute and its transaction, requiring the
// dispute to still be open. Lock order is dispute then transaction,
// everywhere, to keep resolution paths deadlock-free.
func (e *Engine) pendingDispute(ctx context.Context, tx store.Tx, disputeID uuid.UUID) (*model.Dispute, *model.Transaction, error) {
	d, err := tx.Disputes().GetForUpdate(ctx, disputeID)
	if err != nil {
		return nil, nil, err
	}
	if d.Status != model.DisputeStatusPending {
		return nil, nil, model.Conflictf("dispute is closed")
	}
	txn, err := tx.Transactions().GetForUpdate(ctx, d.TransactionID)
	if err != nil {
		return nil, nil, err
	}
	return d, txn, nil
}

// closeMerchantWins applies the losing-trader arithmetic and closes out both
// state machines: release, penalty debit, merchant credit, dispute CLOSED,
// transaction back to SUCCESS.
func (e *Engine) closeMerchantWins(ctx context.Context, tx store.Tx, d *model.Dispute, txn *model.Transaction) error {
	ref := ledger.DisputeRef(d.ID)
	if err := e.ledger.Release(ctx, tx, ref, txn.TraderID, txn.Amount); err != nil {
		return err
	}
	if err := e.ledger.SettleDebit(ctx, tx, ref, txn.TraderID, txn.Amount, e.cfg.TraderDisputePenalty); err != nil {
		return err
	}
	if err := e.ledger.SettleCredit(ctx, tx, ref, txn.MerchantID, txn.Amount, e.cfg.MerchantCommission); err != nil {
		return err
	}
	return e.closeOut(ctx, tx, d, txn, txn.MerchantID)
}

// closeTraderWins releases the reservation with no penalty.
func (e *Engine) closeTraderWins(ctx context.Context, tx store.Tx, d *model.Dispute, txn *model.Transaction) error {
	ref := ledger.DisputeRef(d.ID)
	if err := e.ledger.Release(ctx, tx, ref, txn.TraderID, txn.Amount); err != nil {
		return err
	}
	return e.closeOut(ctx, tx, d, txn, txn.TraderID)
}

func (e *Engine) closeOut(ctx context.Context, tx store.Tx, d *model.Dispute, txn *model.Transaction, winnerID uuid.UUID) error {
	d.Status = model.DisputeStatusClosed
	d.WinnerID = winnerID
	if err := tx.Disputes().Update(ctx, d); err != nil {
		return err
	}
	if err := tx.Transactions().UpdateStatus(ctx, txn.ID, model.TransactionStatusSuccess); err != nil {
		return err
	}
	e.countTransition(model.TransactionStatusDisputed, model.TransactionStatusSuccess)
	return nil
}

func (e *Engine) recordResolution(path, winner string) {
	if e.metrics != nil {
		e.metrics.DisputesResolved.WithLabelValues(path, winner).Inc()
	}
	e.log.Info().Str("path", path).Str("winner", winner).Msg("dispute resolved")
}
