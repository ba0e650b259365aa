package sweep_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"SettleCore/internal/chain"
	"SettleCore/internal/engine"
	"SettleCore/internal/ledger"
	"SettleCore/internal/model"
	"SettleCore/internal/notify"
	"SettleCore/internal/store"
	"SettleCore/internal/sweep"
	"SettleCore/internal/testutil"
)

type stubChain struct{}

func (stubChain) GetWalletBalance(context.Context, string) (int64, error) { return 0, nil }
func (stubChain) GetTransaction(_ context.Context, hash string) (*chain.Tx, error) {
	return nil, model.NotFoundf("transaction %s", hash)
}
func (stubChain) Broadcast(context.Context, []byte) (string, error) { return "hash", nil }

// sweepFixture wires the full resolution stack — engine, confirmer, sweeper —
// to one in-memory store and one clock.
type sweepFixture struct {
	mem     *testutil.MemStore
	eng     *engine.Engine
	conf    *chain.Confirmer
	sweeper *sweep.Sweeper
	now     time.Time
}

func newSweepFixture(t *testing.T) *sweepFixture {
	t.Helper()
	f := &sweepFixture{
		mem: testutil.NewMemStore(),
		now: time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }
	led := ledger.New()

	engCfg := engine.Config{
		PendingTransactionTTL: 15 * time.Minute,
		DisputeTTL:            24 * time.Hour,
		MerchantCommission:    decimal.RequireFromString("0.02"),
		TraderCommission:      decimal.RequireFromString("0.015"),
		TraderDisputePenalty:  decimal.RequireFromString("0.05"),
	}
	f.eng = engine.New(f.mem, led, engCfg, notify.NopNotifier{}, notify.NopPublisher{}, nil).WithClock(clock)

	chainCfg := chain.Config{
		TransferTTL:   time.Hour,
		DepositFee:    decimal.RequireFromString("0.01"),
		WithdrawalFee: decimal.RequireFromString("0.01"),
	}
	f.conf = chain.NewConfirmer(f.mem, stubChain{}, led, chainCfg, notify.NopNotifier{}, notify.NopPublisher{}, nil).WithClock(clock)

	f.sweeper = sweep.New(f.mem, f.eng, f.conf, nil, time.Minute).WithClock(clock)
	return f
}

func (f *sweepFixture) addAccount(t *testing.T, balance int64) uuid.UUID {
	t.Helper()
	id := uuid.New()
	err := f.mem.ExecTx(context.Background(), func(tx store.Tx) error {
		return tx.Accounts().Create(context.Background(), &model.Account{ID: id, Balance: balance, IsActive: true})
	})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	return id
}

func (f *sweepFixture) openPayIn(t *testing.T, amount int64) (merchantID, traderID uuid.UUID, txn *model.Transaction) {
	t.Helper()
	merchantID = f.addAccount(t, 0)
	traderID = f.addAccount(t, 0)
	r := &model.Requisite{
		ID:            uuid.New(),
		TraderID:      traderID,
		FullName:      "Ivan Petrov",
		PaymentMethod: model.PaymentMethodCard,
		CardNumber:    "4276000011112222",
		MinAmount:     1,
		MaxAmount:     1_000_000,
	}
	err := f.mem.ExecTx(context.Background(), func(tx store.Tx) error {
		return tx.Requisites().Create(context.Background(), r)
	})
	if err != nil {
		t.Fatalf("create requisite: %v", err)
	}
	txn, err = f.eng.CreateFundingRequest(
		context.Background(), merchantID, amount, model.PaymentMethodCard, model.TransactionTypePayIn,
	)
	if err != nil {
		t.Fatalf("create funding request: %v", err)
	}
	return merchantID, traderID, txn
}

func TestSweepExpiresPendingTransactions(t *testing.T) {
	f := newSweepFixture(t)
	_, traderID, stale := f.openPayIn(t, 1000)

	f.now = f.now.Add(20 * time.Minute)
	_, _, fresh := f.openPayIn(t, 500)

	f.sweeper.Sweep(context.Background())

	if got := f.mem.Transaction(stale.ID); got.Status != model.TransactionStatusFailed {
		t.Errorf("stale status = %s, want FAILED", got.Status)
	}
	if got := f.mem.Transaction(fresh.ID); got.Status != model.TransactionStatusPending {
		t.Errorf("fresh status = %s, want PENDING untouched", got.Status)
	}
	if a := f.mem.Account(traderID); a.AmountFrozen != 0 {
		t.Errorf("trader frozen = %d, want 0 after release", a.AmountFrozen)
	}
}

func TestSweepDefaultClosesDisputes(t *testing.T) {
	f := newSweepFixture(t)
	merchantID, traderID, txn := f.openPayIn(t, 1000)
	if err := f.eng.Confirm(context.Background(), txn.ID, traderID); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	d, err := f.eng.OpenDispute(context.Background(), txn.ID, merchantID, "goods not received", nil)
	if err != nil {
		t.Fatalf("open dispute: %v", err)
	}

	f.now = f.now.Add(25 * time.Hour)
	f.sweeper.Sweep(context.Background())

	got := f.mem.Dispute(d.ID)
	if got.Status != model.DisputeStatusClosed || got.WinnerID != traderID {
		t.Errorf("dispute status=%s winner=%s, want CLOSED in the trader's favor", got.Status, got.WinnerID)
	}
	// A silent merchant costs the trader nothing.
	if a := f.mem.Account(traderID); a.Balance != 0 || a.AmountFrozen != 0 {
		t.Errorf("trader balance=%d frozen=%d, want 0/0", a.Balance, a.AmountFrozen)
	}
}

func TestSweepCancelsExpiredTransfers(t *testing.T) {
	f := newSweepFixture(t)
	userID := f.addAccount(t, 2000)
	if _, err := f.conf.AddWallet(context.Background(), "pool", "key"); err != nil {
		t.Fatalf("add wallet: %v", err)
	}

	deposit, err := f.conf.RequestDeposit(context.Background(), userID, 500)
	if err != nil {
		t.Fatalf("request deposit: %v", err)
	}
	withdrawal, err := f.conf.RequestWithdrawal(context.Background(), userID, "dest", 500)
	if err != nil {
		t.Fatalf("request withdrawal: %v", err)
	}

	f.now = f.now.Add(2 * time.Hour)
	f.sweeper.Sweep(context.Background())

	if got := f.mem.Transfer(deposit.ID); got.Status != model.TransferStatusCancelled {
		t.Errorf("deposit status = %s, want CANCELLED", got.Status)
	}
	if got := f.mem.Transfer(withdrawal.ID); got.Status != model.TransferStatusCancelled {
		t.Errorf("withdrawal status = %s, want CANCELLED", got.Status)
	}
	// The withdrawal reservation came back.
	if a := f.mem.Account(userID); a.Balance != 2000 || a.AmountFrozen != 0 {
		t.Errorf("balance=%d frozen=%d, want 2000/0", a.Balance, a.AmountFrozen)
	}
}

func TestSweepIsIdempotent(t *testing.T) {
	f := newSweepFixture(t)
	_, _, txn := f.openPayIn(t, 1000)

	f.now = f.now.Add(20 * time.Minute)
	f.sweeper.Sweep(context.Background())
	f.sweeper.Sweep(context.Background())

	if got := f.mem.Transaction(txn.ID); got.Status != model.TransactionStatusFailed {
		t.Errorf("status = %s, want FAILED", got.Status)
	}
	// Exactly one reserve and one release in the journal.
	if entries := f.mem.JournalEntries(); len(entries) != 2 {
		t.Errorf("journal entries = %d, want 2", len(entries))
	}
}
