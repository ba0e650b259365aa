package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"SettleCore/internal/engine"
	"SettleCore/internal/ledger"
	"SettleCore/internal/model"
	"SettleCore/internal/notify"
	"SettleCore/internal/store"
	"SettleCore/internal/testutil"
)

// fixture wires an engine to an in-memory store with a controllable clock.
type fixture struct {
	mem *testutil.MemStore
	eng *engine.Engine
	now time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		mem: testutil.NewMemStore(),
		now: time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC),
	}
	cfg := engine.Config{
		PendingTransactionTTL: 15 * time.Minute,
		DisputeTTL:            24 * time.Hour,
		MerchantCommission:    decimal.RequireFromString("0.02"),
		TraderCommission:      decimal.RequireFromString("0.015"),
		TraderDisputePenalty:  decimal.RequireFromString("0.05"),
	}
	f.eng = engine.New(f.mem, ledger.New(), cfg, notify.NopNotifier{}, notify.NopPublisher{}, nil).
		WithClock(func() time.Time { return f.now })
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func (f *fixture) addAccount(t *testing.T, balance int64) uuid.UUID {
	t.Helper()
	id := uuid.New()
	err := f.mem.ExecTx(context.Background(), func(tx store.Tx) error {
		return tx.Accounts().Create(context.Background(), &model.Account{
			ID: id, Balance: balance, IsActive: true,
		})
	})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	return id
}

func (f *fixture) addCardRequisite(t *testing.T, traderID uuid.UUID, min, max, daily int64, priority int32) *model.Requisite {
	t.Helper()
	r := &model.Requisite{
		ID:             uuid.New(),
		TraderID:       traderID,
		FullName:       "Ivan Petrov",
		PaymentMethod:  model.PaymentMethodCard,
		CardNumber:     "4276000011112222",
		MinAmount:      min,
		MaxAmount:      max,
		MaxDailyAmount: daily,
		Priority:       priority,
	}
	err := f.mem.ExecTx(context.Background(), func(tx store.Tx) error {
		return tx.Requisites().Create(context.Background(), r)
	})
	if err != nil {
		t.Fatalf("create requisite: %v", err)
	}
	return r
}

// openPayIn creates a merchant+trader pair with one matching requisite and a
// PENDING PAY_IN transaction of the given amount.
func (f *fixture) openPayIn(t *testing.T, amount int64) (merchantID, traderID uuid.UUID, txn *model.Transaction) {
	t.Helper()
	merchantID = f.addAccount(t, 0)
	traderID = f.addAccount(t, 0)
	f.addCardRequisite(t, traderID, 1, 1_000_000, 0, 0)

	txn, err := f.eng.CreateFundingRequest(
		context.Background(), merchantID, amount, model.PaymentMethodCard, model.TransactionTypePayIn,
	)
	if err != nil {
		t.Fatalf("create funding request: %v", err)
	}
	return merchantID, traderID, txn
}
