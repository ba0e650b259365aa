package chain_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"SettleCore/internal/chain"
	"SettleCore/internal/ledger"
	"SettleCore/internal/model"
	"SettleCore/internal/notify"
	"SettleCore/internal/store"
	"SettleCore/internal/testutil"
)

// fakeClient serves canned chain state.
type fakeClient struct {
	balances     map[string]int64
	transactions map[string]*chain.Tx
	broadcasts   int
}

func (c *fakeClient) GetWalletBalance(_ context.Context, address string) (int64, error) {
	b, ok := c.balances[address]
	if !ok {
		return 0, model.NotFoundf("wallet %s", address)
	}
	return b, nil
}

func (c *fakeClient) GetTransaction(_ context.Context, hash string) (*chain.Tx, error) {
	tx, ok := c.transactions[hash]
	if !ok {
		return nil, model.NotFoundf("transaction %s", hash)
	}
	return tx, nil
}

func (c *fakeClient) Broadcast(_ context.Context, _ []byte) (string, error) {
	c.broadcasts++
	return "broadcast-hash", nil
}

type chainFixture struct {
	mem    *testutil.MemStore
	client *fakeClient
	conf   *chain.Confirmer
	now    time.Time
}

func newChainFixture(t *testing.T) *chainFixture {
	t.Helper()
	f := &chainFixture{
		mem: testutil.NewMemStore(),
		client: &fakeClient{
			balances:     make(map[string]int64),
			transactions: make(map[string]*chain.Tx),
		},
		now: time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC),
	}
	cfg := chain.Config{
		TransferTTL:   time.Hour,
		DepositFee:    decimal.RequireFromString("0.01"),
		WithdrawalFee: decimal.RequireFromString("0.01"),
	}
	f.conf = chain.NewConfirmer(f.mem, f.client, ledger.New(), cfg, notify.NopNotifier{}, notify.NopPublisher{}, nil).
		WithClock(func() time.Time { return f.now })
	return f
}

func (f *chainFixture) addAccount(t *testing.T, balance int64) uuid.UUID {
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

func (f *chainFixture) addWallet(t *testing.T, address string, chainBalance int64) {
	t.Helper()
	if _, err := f.conf.AddWallet(context.Background(), address, "key-"+address); err != nil {
		t.Fatalf("add wallet: %v", err)
	}
	f.client.balances[address] = chainBalance
}

func TestRequestDepositPicksPoorestWallet(t *testing.T) {
	f := newChainFixture(t)
	userID := f.addAccount(t, 0)
	f.addWallet(t, "rich", 100_000)
	f.addWallet(t, "poor", 50)

	transfer, err := f.conf.RequestDeposit(context.Background(), userID, 1000)
	if err != nil {
		t.Fatalf("request deposit: %v", err)
	}
	if transfer.ToAddress != "poor" {
		t.Errorf("deposit wallet = %s, want the poorest", transfer.ToAddress)
	}
	if transfer.Status != model.TransferStatusPending {
		t.Errorf("status = %s, want PENDING", transfer.Status)
	}
	// Nothing is reserved for a deposit.
	if a := f.mem.Account(userID); a.AmountFrozen != 0 {
		t.Errorf("frozen = %d, want 0", a.AmountFrozen)
	}
}

func TestConfirmDepositVerifiesChainFact(t *testing.T) {
	f := newChainFixture(t)
	userID := f.addAccount(t, 0)
	f.addWallet(t, "pool", 0)

	transfer, err := f.conf.RequestDeposit(context.Background(), userID, 1000)
	if err != nil {
		t.Fatalf("request deposit: %v", err)
	}

	// Unknown hash: the node's not-found is authoritative, the transfer
	// stays pending.
	if err := f.conf.ConfirmDeposit(context.Background(), transfer.ID, "no-such-hash"); !model.IsNotFound(err) {
		t.Fatalf("unknown hash error = %v, want not found", err)
	}
	if got := f.mem.Transfer(transfer.ID); got.Status != model.TransferStatusPending {
		t.Errorf("status = %s, want still PENDING", got.Status)
	}

	// A fact paying the wrong wallet is rejected.
	f.client.transactions["wrong-dest"] = &chain.Tx{Hash: "wrong-dest", From: "user-addr", To: "elsewhere", Amount: 1000}
	if err := f.conf.ConfirmDeposit(context.Background(), transfer.ID, "wrong-dest"); !model.IsBadRequest(err) {
		t.Errorf("wrong destination error = %v, want bad request", err)
	}

	// An underpaying fact is rejected.
	f.client.transactions["short"] = &chain.Tx{Hash: "short", From: "user-addr", To: "pool", Amount: 999}
	if err := f.conf.ConfirmDeposit(context.Background(), transfer.ID, "short"); !model.IsBadRequest(err) {
		t.Errorf("underpayment error = %v, want bad request", err)
	}

	// The genuine fact credits net of the deposit fee: floor(1000*0.99).
	f.client.transactions["good"] = &chain.Tx{Hash: "good", From: "user-addr", To: "pool", Amount: 1000}
	if err := f.conf.ConfirmDeposit(context.Background(), transfer.ID, "good"); err != nil {
		t.Fatalf("confirm deposit: %v", err)
	}
	if a := f.mem.Account(userID); a.Balance != 990 {
		t.Errorf("balance = %d, want 990", a.Balance)
	}
	got := f.mem.Transfer(transfer.ID)
	if got.Status != model.TransferStatusSuccess || got.Hash != "good" || got.FromAddress != "user-addr" {
		t.Errorf("transfer = %+v, want SUCCESS/good/user-addr", got)
	}

	// Confirming again is a conflict, not a double credit.
	if err := f.conf.ConfirmDeposit(context.Background(), transfer.ID, "good"); !model.IsConflict(err) {
		t.Errorf("re-confirm error = %v, want conflict", err)
	}
	if a := f.mem.Account(userID); a.Balance != 990 {
		t.Errorf("balance after re-confirm = %d, want 990", a.Balance)
	}
}

func TestWithdrawalReservesAndSettles(t *testing.T) {
	f := newChainFixture(t)
	userID := f.addAccount(t, 2000)
	f.addWallet(t, "small", 100)
	f.addWallet(t, "big", 1_000_000)

	transfer, err := f.conf.RequestWithdrawal(context.Background(), userID, "dest-addr", 1000)
	if err != nil {
		t.Fatalf("request withdrawal: %v", err)
	}
	// ceil(1000*1.01) = 1010 reserved up front.
	if a := f.mem.Account(userID); a.AmountFrozen != 1010 {
		t.Errorf("frozen = %d, want 1010", a.AmountFrozen)
	}

	if err := f.conf.ConfirmWithdrawal(context.Background(), transfer.ID); err != nil {
		t.Fatalf("confirm withdrawal: %v", err)
	}
	if f.client.broadcasts != 1 {
		t.Errorf("broadcasts = %d, want 1", f.client.broadcasts)
	}

	// Released and debited: 2000 - 1010.
	if a := f.mem.Account(userID); a.Balance != 990 || a.AmountFrozen != 0 {
		t.Errorf("balance=%d frozen=%d, want 990/0", a.Balance, a.AmountFrozen)
	}
	got := f.mem.Transfer(transfer.ID)
	if got.Status != model.TransferStatusSuccess || got.FromAddress != "big" {
		t.Errorf("transfer status=%s from=%s, want SUCCESS from the richest wallet", got.Status, got.FromAddress)
	}
}

func TestWithdrawalRequiresAvailableBalance(t *testing.T) {
	f := newChainFixture(t)
	userID := f.addAccount(t, 1000)

	_, err := f.conf.RequestWithdrawal(context.Background(), userID, "dest", 1000) // needs 1010
	if !model.IsBadRequest(err) {
		t.Fatalf("error = %v, want bad request", err)
	}
	if a := f.mem.Account(userID); a.AmountFrozen != 0 {
		t.Errorf("frozen = %d after rejected request, want 0", a.AmountFrozen)
	}
}

func TestCancelExpiredReleasesWithdrawal(t *testing.T) {
	f := newChainFixture(t)
	userID := f.addAccount(t, 2000)
	f.addWallet(t, "pool", 0)

	withdrawal, err := f.conf.RequestWithdrawal(context.Background(), userID, "dest", 500)
	if err != nil {
		t.Fatalf("request withdrawal: %v", err)
	}
	deposit, err := f.conf.RequestDeposit(context.Background(), userID, 500)
	if err != nil {
		t.Fatalf("request deposit: %v", err)
	}

	if err := f.conf.CancelExpired(context.Background(), withdrawal.ID); !model.IsConflict(err) {
		t.Fatalf("early cancel error = %v, want conflict", err)
	}

	f.now = f.now.Add(2 * time.Hour)
	if err := f.conf.CancelExpired(context.Background(), withdrawal.ID); err != nil {
		t.Fatalf("cancel withdrawal: %v", err)
	}
	if err := f.conf.CancelExpired(context.Background(), deposit.ID); err != nil {
		t.Fatalf("cancel deposit: %v", err)
	}

	if a := f.mem.Account(userID); a.AmountFrozen != 0 || a.Balance != 2000 {
		t.Errorf("balance=%d frozen=%d, want 2000/0", a.Balance, a.AmountFrozen)
	}
	if got := f.mem.Transfer(withdrawal.ID); got.Status != model.TransferStatusCancelled {
		t.Errorf("withdrawal status = %s, want CANCELLED", got.Status)
	}
	if got := f.mem.Transfer(deposit.ID); got.Status != model.TransferStatusCancelled {
		t.Errorf("deposit status = %s, want CANCELLED", got.Status)
	}
}

func TestRequestDepositWithoutWallets(t *testing.T) {
	f := newChainFixture(t)
	userID := f.addAccount(t, 0)

	_, err := f.conf.RequestDeposit(context.Background(), userID, 100)
	if !model.IsNotFound(err) {
		t.Errorf("no wallets error = %v, want not found", err)
	}
}
