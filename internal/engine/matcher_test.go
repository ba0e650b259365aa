package engine_test

import (
	"context"
	"testing"
	"time"

	"SettleCore/internal/model"
)

func TestCreateFundingRequestMatchesAndReserves(t *testing.T) {
	f := newFixture(t)
	_, traderID, txn := f.openPayIn(t, 500)

	if txn.Status != model.TransactionStatusPending {
		t.Errorf("status = %s, want PENDING", txn.Status)
	}
	if txn.TraderID != traderID {
		t.Errorf("matched trader = %s, want %s", txn.TraderID, traderID)
	}
	if want := f.now.Add(15 * time.Minute); !txn.ExpiresAt.Equal(want) {
		t.Errorf("expires_at = %v, want %v", txn.ExpiresAt, want)
	}

	// PAY_IN: the trader is the obligor and carries the reservation.
	if a := f.mem.Account(traderID); a.AmountFrozen != 500 {
		t.Errorf("trader frozen = %d, want 500", a.AmountFrozen)
	}
	entries := f.mem.JournalEntries()
	if len(entries) != 1 {
		t.Fatalf("journal entries = %d, want 1", len(entries))
	}
	if entries[0].RefID != txn.ID || entries[0].AccountID != traderID {
		t.Errorf("journal entry ref=%s account=%s", entries[0].RefID, entries[0].AccountID)
	}
}

func TestCreateFundingRequestRejectsNonPositiveAmount(t *testing.T) {
	f := newFixture(t)
	merchantID := f.addAccount(t, 0)

	_, err := f.eng.CreateFundingRequest(
		context.Background(), merchantID, 0, model.PaymentMethodCard, model.TransactionTypePayIn,
	)
	if !model.IsBadRequest(err) {
		t.Errorf("amount 0 error = %v, want bad request", err)
	}
}

func TestMatchingHonorsAmountWindow(t *testing.T) {
	f := newFixture(t)
	merchantID := f.addAccount(t, 0)
	traderID := f.addAccount(t, 0)
	f.addCardRequisite(t, traderID, 100, 1000, 0, 0)

	// Exactly at the window edges matches.
	for _, amount := range []int64{100, 1000} {
		txn, err := f.eng.CreateFundingRequest(
			context.Background(), merchantID, amount, model.PaymentMethodCard, model.TransactionTypePayIn,
		)
		if err != nil {
			t.Fatalf("amount %d: %v", amount, err)
		}
		if err := f.eng.Confirm(context.Background(), txn.ID, traderID); err != nil {
			t.Fatalf("confirm: %v", err)
		}
	}

	// One past either edge does not.
	for _, amount := range []int64{99, 1001} {
		_, err := f.eng.CreateFundingRequest(
			context.Background(), merchantID, amount, model.PaymentMethodCard, model.TransactionTypePayIn,
		)
		if !model.IsNotFound(err) {
			t.Errorf("amount %d error = %v, want not found", amount, err)
		}
	}
}

func TestMatchingPrefersLowestPriorityThenOldest(t *testing.T) {
	f := newFixture(t)
	merchantID := f.addAccount(t, 0)
	lowPriority := f.addAccount(t, 0)
	highPriority := f.addAccount(t, 0)
	f.addCardRequisite(t, lowPriority, 1, 10000, 0, 5)
	f.addCardRequisite(t, highPriority, 1, 10000, 0, 1)

	txn, err := f.eng.CreateFundingRequest(
		context.Background(), merchantID, 200, model.PaymentMethodCard, model.TransactionTypePayIn,
	)
	if err != nil {
		t.Fatalf("create funding request: %v", err)
	}
	if txn.TraderID != highPriority {
		t.Errorf("matched trader = %s, want the priority-1 trader", txn.TraderID)
	}
}

func TestMatchingSkipsBusyRequisite(t *testing.T) {
	f := newFixture(t)
	busyTrader := f.addAccount(t, 0)
	freeTrader := f.addAccount(t, 0)
	f.addCardRequisite(t, busyTrader, 1, 10000, 0, 0)
	f.addCardRequisite(t, freeTrader, 1, 10000, 0, 1)

	firstMerchant := f.addAccount(t, 0)
	first, err := f.eng.CreateFundingRequest(
		context.Background(), firstMerchant, 100, model.PaymentMethodCard, model.TransactionTypePayIn,
	)
	if err != nil {
		t.Fatalf("first request: %v", err)
	}
	if first.TraderID != busyTrader {
		t.Fatalf("first matched %s, want the priority-0 trader", first.TraderID)
	}

	secondMerchant := f.addAccount(t, 0)
	second, err := f.eng.CreateFundingRequest(
		context.Background(), secondMerchant, 100, model.PaymentMethodCard, model.TransactionTypePayIn,
	)
	if err != nil {
		t.Fatalf("second request: %v", err)
	}
	if second.TraderID != freeTrader {
		t.Errorf("second matched %s, want the free trader", second.TraderID)
	}
}

func TestMatchingSkipsInactiveTrader(t *testing.T) {
	f := newFixture(t)
	merchantID := f.addAccount(t, 0)
	traderID := f.addAccount(t, 0)
	f.addCardRequisite(t, traderID, 1, 10000, 0, 0)

	if err := f.eng.SetAccountActive(context.Background(), traderID, false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	_, err := f.eng.CreateFundingRequest(
		context.Background(), merchantID, 100, model.PaymentMethodCard, model.TransactionTypePayIn,
	)
	if !model.IsNotFound(err) {
		t.Errorf("error = %v, want not found", err)
	}
}

func TestMatchingHonorsDailyCap(t *testing.T) {
	f := newFixture(t)
	merchantID := f.addAccount(t, 0)
	traderID := f.addAccount(t, 0)
	f.addCardRequisite(t, traderID, 1, 10000, 1000, 0)

	txn, err := f.eng.CreateFundingRequest(
		context.Background(), merchantID, 700, model.PaymentMethodCard, model.TransactionTypePayIn,
	)
	if err != nil {
		t.Fatalf("first request: %v", err)
	}
	if err := f.eng.Confirm(context.Background(), txn.ID, traderID); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	// 700 used today; another 400 would breach the 1000 cap.
	_, err = f.eng.CreateFundingRequest(
		context.Background(), merchantID, 400, model.PaymentMethodCard, model.TransactionTypePayIn,
	)
	if !model.IsNotFound(err) {
		t.Errorf("over-cap error = %v, want not found", err)
	}

	// 300 still fits exactly.
	if _, err := f.eng.CreateFundingRequest(
		context.Background(), merchantID, 300, model.PaymentMethodCard, model.TransactionTypePayIn,
	); err != nil {
		t.Errorf("at-cap request failed: %v", err)
	}
}

func TestDuplicatePendingRequestConflicts(t *testing.T) {
	f := newFixture(t)
	merchantID, _, _ := f.openPayIn(t, 500)

	otherTrader := f.addAccount(t, 0)
	f.addCardRequisite(t, otherTrader, 1, 1_000_000, 0, 9)

	_, err := f.eng.CreateFundingRequest(
		context.Background(), merchantID, 500, model.PaymentMethodCard, model.TransactionTypePayIn,
	)
	if !model.IsConflict(err) {
		t.Errorf("duplicate request error = %v, want conflict", err)
	}
}

func TestPayOutChecksMerchantBalance(t *testing.T) {
	f := newFixture(t)
	traderID := f.addAccount(t, 0)
	f.addCardRequisite(t, traderID, 1, 1_000_000, 0, 0)

	poor := f.addAccount(t, 500)
	_, err := f.eng.CreateFundingRequest(
		context.Background(), poor, 1000, model.PaymentMethodCard, model.TransactionTypePayOut,
	)
	if !model.IsBadRequest(err) {
		t.Fatalf("insufficient balance error = %v, want bad request", err)
	}
	// The failed request must not leave any ledger trace.
	if a := f.mem.Account(poor); a.AmountFrozen != 0 {
		t.Errorf("frozen = %d after failed request, want 0", a.AmountFrozen)
	}
	if n := len(f.mem.JournalEntries()); n != 0 {
		t.Errorf("journal entries = %d, want 0", n)
	}

	// ceil(1000*1.02) = 1020 is needed; 1020 suffices.
	rich := f.addAccount(t, 1020)
	txn, err := f.eng.CreateFundingRequest(
		context.Background(), rich, 1000, model.PaymentMethodCard, model.TransactionTypePayOut,
	)
	if err != nil {
		t.Fatalf("pay-out request: %v", err)
	}
	// PAY_OUT: the merchant is the obligor.
	if a := f.mem.Account(rich); a.AmountFrozen != 1000 {
		t.Errorf("merchant frozen = %d, want 1000", a.AmountFrozen)
	}
	if txn.Obligor() != rich {
		t.Errorf("obligor = %s, want merchant", txn.Obligor())
	}
}

func TestNoCounterpartyLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	merchantID := f.addAccount(t, 0)

	_, err := f.eng.CreateFundingRequest(
		context.Background(), merchantID, 100, model.PaymentMethodCard, model.TransactionTypePayIn,
	)
	if !model.IsNotFound(err) {
		t.Fatalf("error = %v, want not found", err)
	}
	if n := len(f.mem.JournalEntries()); n != 0 {
		t.Errorf("journal entries = %d, want 0", n)
	}
}
