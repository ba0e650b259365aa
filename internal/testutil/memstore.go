package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"SettleCore/internal/model"
	"SettleCore/internal/store"
)

// MemStore is an in-memory store.Store for engine tests. ExecTx serializes on
// a mutex and snapshots all state before running fn, so a returned error
// rolls everything back like a real transaction. Row locks are a no-op; the
// mutex already serializes.
type MemStore struct {
	mu sync.Mutex

	accounts     map[uuid.UUID]*model.Account
	requisites   map[uuid.UUID]*model.Requisite
	transactions map[uuid.UUID]*model.Transaction
	disputes     map[uuid.UUID]*model.Dispute
	transfers    map[uuid.UUID]*model.BlockchainTransfer
	wallets      map[uuid.UUID]*model.Wallet
	journal      []store.JournalEntry
}

func NewMemStore() *MemStore {
	return &MemStore{
		accounts:     make(map[uuid.UUID]*model.Account),
		requisites:   make(map[uuid.UUID]*model.Requisite),
		transactions: make(map[uuid.UUID]*model.Transaction),
		disputes:     make(map[uuid.UUID]*model.Dispute),
		transfers:    make(map[uuid.UUID]*model.BlockchainTransfer),
		wallets:      make(map[uuid.UUID]*model.Wallet),
	}
}

func (s *MemStore) ExecTx(ctx context.Context, fn func(tx store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(&memTx{s: s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

type memSnapshot struct {
	accounts     map[uuid.UUID]*model.Account
	requisites   map[uuid.UUID]*model.Requisite
	transactions map[uuid.UUID]*model.Transaction
	disputes     map[uuid.UUID]*model.Dispute
	transfers    map[uuid.UUID]*model.BlockchainTransfer
	wallets      map[uuid.UUID]*model.Wallet
	journalLen   int
}

func (s *MemStore) snapshot() memSnapshot {
	snap := memSnapshot{
		accounts:     make(map[uuid.UUID]*model.Account, len(s.accounts)),
		requisites:   make(map[uuid.UUID]*model.Requisite, len(s.requisites)),
		transactions: make(map[uuid.UUID]*model.Transaction, len(s.transactions)),
		disputes:     make(map[uuid.UUID]*model.Dispute, len(s.disputes)),
		transfers:    make(map[uuid.UUID]*model.BlockchainTransfer, len(s.transfers)),
		wallets:      make(map[uuid.UUID]*model.Wallet, len(s.wallets)),
		journalLen:   len(s.journal),
	}
	for id, a := range s.accounts {
		snap.accounts[id] = copyAccount(a)
	}
	for id, r := range s.requisites {
		snap.requisites[id] = copyRequisite(r)
	}
	for id, t := range s.transactions {
		snap.transactions[id] = copyTransaction(t)
	}
	for id, d := range s.disputes {
		snap.disputes[id] = copyDispute(d)
	}
	for id, bt := range s.transfers {
		snap.transfers[id] = copyTransfer(bt)
	}
	for id, w := range s.wallets {
		cw := *w
		snap.wallets[id] = &cw
	}
	return snap
}

func (s *MemStore) restore(snap memSnapshot) {
	s.accounts = snap.accounts
	s.requisites = snap.requisites
	s.transactions = snap.transactions
	s.disputes = snap.disputes
	s.transfers = snap.transfers
	s.wallets = snap.wallets
	s.journal = s.journal[:snap.journalLen]
}

// --- direct accessors for test assertions ---

func (s *MemStore) Account(id uuid.UUID) *model.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.accounts[id]; ok {
		return copyAccount(a)
	}
	return nil
}

func (s *MemStore) Transaction(id uuid.UUID) *model.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.transactions[id]; ok {
		return copyTransaction(t)
	}
	return nil
}

func (s *MemStore) Dispute(id uuid.UUID) *model.Dispute {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.disputes[id]; ok {
		return copyDispute(d)
	}
	return nil
}

func (s *MemStore) Transfer(id uuid.UUID) *model.BlockchainTransfer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.transfers[id]; ok {
		return copyTransfer(t)
	}
	return nil
}

func (s *MemStore) JournalEntries() []store.JournalEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.JournalEntry, len(s.journal))
	copy(out, s.journal)
	return out
}

// --- Tx and repos ---

type memTx struct {
	s *MemStore
}

func (tx *memTx) Accounts() store.AccountRepo         { return &memAccounts{s: tx.s} }
func (tx *memTx) Requisites() store.RequisiteRepo     { return &memRequisites{s: tx.s} }
func (tx *memTx) Transactions() store.TransactionRepo { return &memTransactions{s: tx.s} }
func (tx *memTx) Disputes() store.DisputeRepo         { return &memDisputes{s: tx.s} }
func (tx *memTx) Transfers() store.TransferRepo       { return &memTransfers{s: tx.s} }
func (tx *memTx) Wallets() store.WalletRepo           { return &memWallets{s: tx.s} }
func (tx *memTx) Journal() store.JournalWriter        { return &memJournal{s: tx.s} }

type memAccounts struct{ s *MemStore }

func (r *memAccounts) Get(_ context.Context, id uuid.UUID) (*model.Account, error) {
	a, ok := r.s.accounts[id]
	if !ok {
		return nil, model.NotFoundf("account %s", id)
	}
	return copyAccount(a), nil
}

func (r *memAccounts) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	return r.Get(ctx, id)
}

func (r *memAccounts) Create(_ context.Context, a *model.Account) error {
	if _, exists := r.s.accounts[a.ID]; exists {
		return model.Conflictf("account %s already exists", a.ID)
	}
	now := time.Now()
	a.CreatedAt, a.UpdatedAt = now, now
	r.s.accounts[a.ID] = copyAccount(a)
	return nil
}

func (r *memAccounts) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	a, ok := r.s.accounts[id]
	if !ok {
		return model.NotFoundf("account %s", id)
	}
	a.IsActive = active
	a.UpdatedAt = time.Now()
	return nil
}

func (r *memAccounts) AdjustBalances(_ context.Context, id uuid.UUID, balanceDelta, frozenDelta int64) (int64, error) {
	a, ok := r.s.accounts[id]
	if !ok {
		return 0, model.NotFoundf("account %s", id)
	}
	a.Balance += balanceDelta
	a.AmountFrozen += frozenDelta
	a.UpdatedAt = time.Now()
	return a.AmountFrozen, nil
}

type memRequisites struct{ s *MemStore }

func (r *memRequisites) Get(_ context.Context, id uuid.UUID) (*model.Requisite, error) {
	q, ok := r.s.requisites[id]
	if !ok {
		return nil, model.NotFoundf("requisite %s", id)
	}
	return copyRequisite(q), nil
}

func (r *memRequisites) Create(_ context.Context, q *model.Requisite) error {
	if _, exists := r.s.requisites[q.ID]; exists {
		return model.Conflictf("requisite %s already exists", q.ID)
	}
	now := time.Now()
	q.CreatedAt, q.UpdatedAt = now, now
	r.s.requisites[q.ID] = copyRequisite(q)
	return nil
}

func (r *memRequisites) Update(_ context.Context, q *model.Requisite) error {
	existing, ok := r.s.requisites[q.ID]
	if !ok {
		return model.NotFoundf("requisite %s", q.ID)
	}
	q.CreatedAt = existing.CreatedAt
	q.UpdatedAt = time.Now()
	r.s.requisites[q.ID] = copyRequisite(q)
	return nil
}

func (r *memRequisites) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := r.s.requisites[id]; !ok {
		return model.NotFoundf("requisite %s", id)
	}
	delete(r.s.requisites, id)
	return nil
}

func (r *memRequisites) ListEligible(_ context.Context, method model.PaymentMethod, amount int64) ([]*model.Requisite, error) {
	var out []*model.Requisite
	for _, q := range r.s.requisites {
		if !q.Accepts(method, amount) {
			continue
		}
		trader, ok := r.s.accounts[q.TraderID]
		if !ok || !trader.IsActive {
			continue
		}
		out = append(out, copyRequisite(q))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

type memTransactions struct{ s *MemStore }

func (r *memTransactions) Get(_ context.Context, id uuid.UUID) (*model.Transaction, error) {
	t, ok := r.s.transactions[id]
	if !ok {
		return nil, model.NotFoundf("transaction %s", id)
	}
	return copyTransaction(t), nil
}

func (r *memTransactions) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Transaction, error) {
	return r.Get(ctx, id)
}

func (r *memTransactions) Create(_ context.Context, t *model.Transaction) error {
	if _, exists := r.s.transactions[t.ID]; exists {
		return model.Conflictf("transaction %s already exists", t.ID)
	}
	// Mirror the partial unique indexes.
	for _, other := range r.s.transactions {
		if other.Status != model.TransactionStatusPending {
			continue
		}
		if other.MerchantID == t.MerchantID && other.Type == t.Type {
			return model.Conflictf("merchant already has a pending %s request", t.Type)
		}
		if other.RequisiteID != uuid.Nil && other.RequisiteID == t.RequisiteID {
			return model.Conflictf("requisite already has a pending transaction")
		}
	}
	now := time.Now()
	t.CreatedAt, t.UpdatedAt = now, now
	r.s.transactions[t.ID] = copyTransaction(t)
	return nil
}

func (r *memTransactions) UpdateStatus(_ context.Context, id uuid.UUID, status model.TransactionStatus) error {
	t, ok := r.s.transactions[id]
	if !ok {
		return model.NotFoundf("transaction %s", id)
	}
	t.Status = status
	t.UpdatedAt = time.Now()
	return nil
}

func (r *memTransactions) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := r.s.transactions[id]; !ok {
		return model.NotFoundf("transaction %s", id)
	}
	delete(r.s.transactions, id)
	return nil
}

func (r *memTransactions) ExistsPendingByRequisite(_ context.Context, requisiteID uuid.UUID) (bool, error) {
	for _, t := range r.s.transactions {
		if t.Status == model.TransactionStatusPending && t.RequisiteID == requisiteID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memTransactions) ExistsPendingByMerchantAndType(_ context.Context, merchantID uuid.UUID, typ model.TransactionType) (bool, error) {
	for _, t := range r.s.transactions {
		if t.Status == model.TransactionStatusPending && t.MerchantID == merchantID && t.Type == typ {
			return true, nil
		}
	}
	return false, nil
}

func (r *memTransactions) SumByRequisiteSince(_ context.Context, requisiteID uuid.UUID, since time.Time) (int64, error) {
	var sum int64
	for _, t := range r.s.transactions {
		if t.RequisiteID != requisiteID || t.CreatedAt.Before(since) {
			continue
		}
		if t.Status == model.TransactionStatusPending || t.Status == model.TransactionStatusSuccess {
			sum += t.Amount
		}
	}
	return sum, nil
}

func (r *memTransactions) ListExpiredPending(_ context.Context, now time.Time, limit int) ([]*model.Transaction, error) {
	var out []*model.Transaction
	for _, t := range r.s.transactions {
		if t.Status == model.TransactionStatusPending && t.ExpiresAt.Before(now) {
			out = append(out, copyTransaction(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memDisputes struct{ s *MemStore }

func (r *memDisputes) Get(_ context.Context, id uuid.UUID) (*model.Dispute, error) {
	d, ok := r.s.disputes[id]
	if !ok {
		return nil, model.NotFoundf("dispute %s", id)
	}
	return copyDispute(d), nil
}

func (r *memDisputes) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Dispute, error) {
	return r.Get(ctx, id)
}

func (r *memDisputes) GetByTransaction(_ context.Context, transactionID uuid.UUID) (*model.Dispute, error) {
	for _, d := range r.s.disputes {
		if d.TransactionID == transactionID {
			return copyDispute(d), nil
		}
	}
	return nil, model.NotFoundf("dispute for transaction %s", transactionID)
}

func (r *memDisputes) Create(_ context.Context, d *model.Dispute) error {
	for _, other := range r.s.disputes {
		if other.TransactionID == d.TransactionID {
			return model.Conflictf("transaction already has a dispute")
		}
	}
	now := time.Now()
	d.CreatedAt, d.UpdatedAt = now, now
	r.s.disputes[d.ID] = copyDispute(d)
	return nil
}

func (r *memDisputes) Update(_ context.Context, d *model.Dispute) error {
	if _, ok := r.s.disputes[d.ID]; !ok {
		return model.NotFoundf("dispute %s", d.ID)
	}
	d.UpdatedAt = time.Now()
	r.s.disputes[d.ID] = copyDispute(d)
	return nil
}

func (r *memDisputes) ListExpiredPending(_ context.Context, now time.Time, limit int) ([]*model.Dispute, error) {
	var out []*model.Dispute
	for _, d := range r.s.disputes {
		if d.Status == model.DisputeStatusPending && d.ExpiresAt.Before(now) {
			out = append(out, copyDispute(d))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memTransfers struct{ s *MemStore }

func (r *memTransfers) Get(_ context.Context, id uuid.UUID) (*model.BlockchainTransfer, error) {
	t, ok := r.s.transfers[id]
	if !ok {
		return nil, model.NotFoundf("transfer %s", id)
	}
	return copyTransfer(t), nil
}

func (r *memTransfers) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.BlockchainTransfer, error) {
	return r.Get(ctx, id)
}

func (r *memTransfers) Create(_ context.Context, t *model.BlockchainTransfer) error {
	if _, exists := r.s.transfers[t.ID]; exists {
		return model.Conflictf("transfer %s already exists", t.ID)
	}
	now := time.Now()
	t.CreatedAt, t.UpdatedAt = now, now
	r.s.transfers[t.ID] = copyTransfer(t)
	return nil
}

func (r *memTransfers) Update(_ context.Context, t *model.BlockchainTransfer) error {
	if _, ok := r.s.transfers[t.ID]; !ok {
		return model.NotFoundf("transfer %s", t.ID)
	}
	t.UpdatedAt = time.Now()
	r.s.transfers[t.ID] = copyTransfer(t)
	return nil
}

func (r *memTransfers) ListExpiredPending(_ context.Context, now time.Time, limit int) ([]*model.BlockchainTransfer, error) {
	var out []*model.BlockchainTransfer
	for _, t := range r.s.transfers {
		if t.Status == model.TransferStatusPending && t.ExpiresAt.Before(now) {
			out = append(out, copyTransfer(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memWallets struct{ s *MemStore }

func (r *memWallets) Create(_ context.Context, w *model.Wallet) error {
	for _, other := range r.s.wallets {
		if other.Address == w.Address {
			return model.Conflictf("wallet address %s already exists", w.Address)
		}
	}
	now := time.Now()
	w.CreatedAt, w.UpdatedAt = now, now
	cw := *w
	r.s.wallets[w.ID] = &cw
	return nil
}

func (r *memWallets) GetByAddress(_ context.Context, address string) (*model.Wallet, error) {
	for _, w := range r.s.wallets {
		if w.Address == address {
			cw := *w
			return &cw, nil
		}
	}
	return nil, model.NotFoundf("wallet %s", address)
}

func (r *memWallets) List(_ context.Context) ([]*model.Wallet, error) {
	var out []*model.Wallet
	for _, w := range r.s.wallets {
		cw := *w
		out = append(out, &cw)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out, nil
}

type memJournal struct{ s *MemStore }

func (j *memJournal) Append(_ context.Context, entries ...store.JournalEntry) error {
	j.s.journal = append(j.s.journal, entries...)
	return nil
}

// --- copy helpers ---

func copyAccount(a *model.Account) *model.Account {
	c := *a
	return &c
}

func copyRequisite(r *model.Requisite) *model.Requisite {
	c := *r
	return &c
}

func copyTransaction(t *model.Transaction) *model.Transaction {
	c := *t
	return &c
}

func copyDispute(d *model.Dispute) *model.Dispute {
	c := *d
	c.ImageURLs = append([]string(nil), d.ImageURLs...)
	return &c
}

func copyTransfer(t *model.BlockchainTransfer) *model.BlockchainTransfer {
	c := *t
	return &c
}
