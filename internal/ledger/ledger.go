// Package ledger holds the four primitive balance movements every settlement
// path is built from: reserve, release, settle-credit, settle-debit. Each
// primitive runs against an open store.Tx so that the account mutation, the
// journal row, and the status write that accompanies them commit atomically.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"SettleCore/internal/model"
	"SettleCore/internal/store"
)

// Ref names the obligation a movement belongs to, for the journal.
type Ref struct {
	Kind store.RefKind
	ID   uuid.UUID
}

func TransactionRef(id uuid.UUID) Ref { return Ref{Kind: store.RefKindTransaction, ID: id} }
func DisputeRef(id uuid.UUID) Ref     { return Ref{Kind: store.RefKindDispute, ID: id} }
func TransferRef(id uuid.UUID) Ref    { return Ref{Kind: store.RefKindTransfer, ID: id} }

// Ledger applies balance movements. It is stateless; callers supply the open
// transaction and hold the account row lock (GetForUpdate) before calling.
type Ledger struct{}

func New() *Ledger { return &Ledger{} }

// Reserve freezes amount against the account. Reservations may exceed the
// settled balance — traders carry float — so no balance check happens here;
// request paths that must not over-commit check Available() before reserving.
func (l *Ledger) Reserve(ctx context.Context, tx store.Tx, ref Ref, accountID uuid.UUID, amount int64) error {
	if amount <= 0 {
		return model.BadRequestf("reserve amount must be positive, got %d", amount)
	}
	if _, err := tx.Accounts().AdjustBalances(ctx, accountID, 0, amount); err != nil {
		return err
	}
	return l.journal(ctx, tx, ref, accountID, store.JournalOpReserve, amount, 0, amount)
}

// Release undoes a reservation. Driving amount_frozen negative is a
// programming invariant violation, not a user error.
func (l *Ledger) Release(ctx context.Context, tx store.Tx, ref Ref, accountID uuid.UUID, amount int64) error {
	if amount <= 0 {
		return model.BadRequestf("release amount must be positive, got %d", amount)
	}
	newFrozen, err := tx.Accounts().AdjustBalances(ctx, accountID, 0, -amount)
	if err != nil {
		return err
	}
	if newFrozen < 0 {
		return fmt.Errorf("%w: release of %d drove account %s frozen amount to %d",
			model.ErrInternal, amount, accountID, newFrozen)
	}
	return l.journal(ctx, tx, ref, accountID, store.JournalOpRelease, amount, 0, -amount)
}

// SettleCredit applies amount * (1 - feeRate) to the account balance.
func (l *Ledger) SettleCredit(ctx context.Context, tx store.Tx, ref Ref, accountID uuid.UUID, amount int64, feeRate decimal.Decimal) error {
	credit := CreditAfterFee(amount, feeRate)
	if _, err := tx.Accounts().AdjustBalances(ctx, accountID, credit, 0); err != nil {
		return err
	}
	return l.journal(ctx, tx, ref, accountID, store.JournalOpSettleCredit, amount, credit, 0)
}

// SettleDebit applies -amount * (1 + penaltyRate) to the account balance.
// Any matching reservation is released by the caller as its own movement, so
// the journal keeps one row per primitive.
func (l *Ledger) SettleDebit(ctx context.Context, tx store.Tx, ref Ref, accountID uuid.UUID, amount int64, penaltyRate decimal.Decimal) error {
	debit := DebitWithPenalty(amount, penaltyRate)
	if _, err := tx.Accounts().AdjustBalances(ctx, accountID, -debit, 0); err != nil {
		return err
	}
	return l.journal(ctx, tx, ref, accountID, store.JournalOpSettleDebit, amount, -debit, 0)
}

func (l *Ledger) journal(ctx context.Context, tx store.Tx, ref Ref, accountID uuid.UUID, op store.JournalOp, amount, balanceDelta, frozenDelta int64) error {
	return tx.Journal().Append(ctx, store.JournalEntry{
		ID:           uuid.New(),
		RefKind:      ref.Kind,
		RefID:        ref.ID,
		AccountID:    accountID,
		Op:           op,
		Amount:       amount,
		BalanceDelta: balanceDelta,
		FrozenDelta:  frozenDelta,
		CreatedAt:    time.Now(),
	})
}
