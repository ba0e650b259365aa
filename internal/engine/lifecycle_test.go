package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"SettleCore/internal/model"
	"SettleCore/internal/store"
)

func TestConfirmPayInSettlesMerchant(t *testing.T) {
	f := newFixture(t)
	merchantID, traderID, txn := f.openPayIn(t, 1000)

	if err := f.eng.Confirm(context.Background(), txn.ID, traderID); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	if got := f.mem.Transaction(txn.ID); got.Status != model.TransactionStatusSuccess {
		t.Errorf("status = %s, want SUCCESS", got.Status)
	}
	// Trader's reservation released, balance untouched.
	if a := f.mem.Account(traderID); a.AmountFrozen != 0 || a.Balance != 0 {
		t.Errorf("trader balance=%d frozen=%d, want 0/0", a.Balance, a.AmountFrozen)
	}
	// Merchant credited floor(1000 * 0.98).
	if a := f.mem.Account(merchantID); a.Balance != 980 {
		t.Errorf("merchant balance = %d, want 980", a.Balance)
	}

	entries := f.mem.JournalEntries()
	if len(entries) != 3 { // reserve, release, settle_credit
		t.Fatalf("journal entries = %d, want 3", len(entries))
	}
	if entries[2].Op != store.JournalOpSettleCredit || entries[2].BalanceDelta != 980 {
		t.Errorf("settle entry op=%s delta=%d", entries[2].Op, entries[2].BalanceDelta)
	}
}

func TestConfirmPayOutSettlesBothSides(t *testing.T) {
	f := newFixture(t)
	merchantID := f.addAccount(t, 5000)
	traderID := f.addAccount(t, 0)
	f.addCardRequisite(t, traderID, 1, 1_000_000, 0, 0)

	txn, err := f.eng.CreateFundingRequest(
		context.Background(), merchantID, 1000, model.PaymentMethodCard, model.TransactionTypePayOut,
	)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := f.eng.Confirm(context.Background(), txn.ID, traderID); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	// Merchant: 5000 - ceil(1000*1.02) = 3980, reservation gone.
	if a := f.mem.Account(merchantID); a.Balance != 3980 || a.AmountFrozen != 0 {
		t.Errorf("merchant balance=%d frozen=%d, want 3980/0", a.Balance, a.AmountFrozen)
	}
	// Trader made whole for the fiat paid out: floor(1000*0.985) = 985.
	if a := f.mem.Account(traderID); a.Balance != 985 {
		t.Errorf("trader balance = %d, want 985", a.Balance)
	}
}

func TestConfirmIsExactlyOnce(t *testing.T) {
	f := newFixture(t)
	merchantID, traderID, txn := f.openPayIn(t, 1000)

	if err := f.eng.Confirm(context.Background(), txn.ID, traderID); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	err := f.eng.Confirm(context.Background(), txn.ID, traderID)
	if !model.IsConflict(err) {
		t.Fatalf("second confirm error = %v, want conflict", err)
	}
	// Settled exactly once.
	if a := f.mem.Account(merchantID); a.Balance != 980 {
		t.Errorf("merchant balance = %d, want 980", a.Balance)
	}
}

func TestConfirmByWrongTraderIsNotFound(t *testing.T) {
	f := newFixture(t)
	_, _, txn := f.openPayIn(t, 1000)

	err := f.eng.Confirm(context.Background(), txn.ID, uuid.New())
	if !model.IsNotFound(err) {
		t.Errorf("error = %v, want not found", err)
	}
	if got := f.mem.Transaction(txn.ID); got.Status != model.TransactionStatusPending {
		t.Errorf("status = %s, want PENDING untouched", got.Status)
	}
}

func TestExpireReleasesReservation(t *testing.T) {
	f := newFixture(t)
	_, traderID, txn := f.openPayIn(t, 1000)

	// Still inside the window.
	if err := f.eng.Expire(context.Background(), txn.ID); !model.IsConflict(err) {
		t.Fatalf("early expire error = %v, want conflict", err)
	}

	f.advance(16 * time.Minute)
	if err := f.eng.Expire(context.Background(), txn.ID); err != nil {
		t.Fatalf("expire: %v", err)
	}

	if got := f.mem.Transaction(txn.ID); got.Status != model.TransactionStatusFailed {
		t.Errorf("status = %s, want FAILED", got.Status)
	}
	if a := f.mem.Account(traderID); a.AmountFrozen != 0 {
		t.Errorf("trader frozen = %d, want 0", a.AmountFrozen)
	}
}

func TestExpireThenConfirmLosesTheRace(t *testing.T) {
	f := newFixture(t)
	_, traderID, txn := f.openPayIn(t, 1000)

	f.advance(16 * time.Minute)
	if err := f.eng.Expire(context.Background(), txn.ID); err != nil {
		t.Fatalf("expire: %v", err)
	}
	if err := f.eng.Confirm(context.Background(), txn.ID, traderID); !model.IsConflict(err) {
		t.Errorf("confirm after expire error = %v, want conflict", err)
	}
}

func TestDeleteTransactionRejectsOpenOnes(t *testing.T) {
	f := newFixture(t)
	_, traderID, txn := f.openPayIn(t, 1000)

	if err := f.eng.DeleteTransaction(context.Background(), txn.ID); !model.IsConflict(err) {
		t.Fatalf("delete pending error = %v, want conflict", err)
	}

	if err := f.eng.Confirm(context.Background(), txn.ID, traderID); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if err := f.eng.DeleteTransaction(context.Background(), txn.ID); err != nil {
		t.Fatalf("delete settled: %v", err)
	}
	if got := f.mem.Transaction(txn.ID); got != nil {
		t.Errorf("transaction still present after delete")
	}
}
