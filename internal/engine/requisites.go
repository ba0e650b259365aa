package engine

import (
	"context"

	"github.com/google/uuid"

	"SettleCore/internal/model"
	"SettleCore/internal/store"
)

// Requisite management. Capability checks happen upstream; the engine only
// re-validates ownership: a requisite is managed by its owning trader or by
// an administrator.

func (e *Engine) CreateRequisite(ctx context.Context, callerID uuid.UUID, isAdmin bool, r *model.Requisite) error {
	if r.TraderID != callerID && !isAdmin {
		return model.NotFoundf("trader")
	}
	if err := r.Validate(); err != nil {
		return err
	}
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return e.store.ExecTx(ctx, func(tx store.Tx) error {
		// The owning account must exist and be a real trader row.
		if _, err := tx.Accounts().Get(ctx, r.TraderID); err != nil {
			return err
		}
		return tx.Requisites().Create(ctx, r)
	})
}

func (e *Engine) UpdateRequisite(ctx context.Context, callerID uuid.UUID, isAdmin bool, r *model.Requisite) error {
	if err := r.Validate(); err != nil {
		return err
	}
	return e.store.ExecTx(ctx, func(tx store.Tx) error {
		existing, err := tx.Requisites().Get(ctx, r.ID)
		if err != nil {
			return err
		}
		if existing.TraderID != callerID && !isAdmin {
			return model.NotFoundf("requisite")
		}
		r.TraderID = existing.TraderID
		return tx.Requisites().Update(ctx, r)
	})
}

func (e *Engine) DeleteRequisite(ctx context.Context, callerID uuid.UUID, isAdmin bool, requisiteID uuid.UUID) error {
	return e.store.ExecTx(ctx, func(tx store.Tx) error {
		existing, err := tx.Requisites().Get(ctx, requisiteID)
		if err != nil {
			return err
		}
		if existing.TraderID != callerID && !isAdmin {
			return model.NotFoundf("requisite")
		}
		// A requisite pinned by an open transaction stays put.
		busy, err := tx.Transactions().ExistsPendingByRequisite(ctx, requisiteID)
		if err != nil {
			return err
		}
		if busy {
			return model.Conflictf("requisite has a pending transaction")
		}
		return tx.Requisites().Delete(ctx, requisiteID)
	})
}
