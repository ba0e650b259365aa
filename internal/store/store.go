package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"SettleCore/internal/model"
)

// Store scopes a group of repository calls to one ACID transaction. Every
// settlement mutation (ledger movement plus the status write it accompanies)
// runs inside a single ExecTx call; partial application is the primary
// correctness risk the engine guards against.
type Store interface {
	// ExecTx runs fn inside a database transaction. The transaction commits
	// when fn returns nil and rolls back otherwise.
	ExecTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx exposes the per-entity repositories bound to one open transaction.
type Tx interface {
	Accounts() AccountRepo
	Requisites() RequisiteRepo
	Transactions() TransactionRepo
	Disputes() DisputeRepo
	Transfers() TransferRepo
	Wallets() WalletRepo
	Journal() JournalWriter
}

// AccountRepo mutates the most contended resource in the system: the
// balance/amount_frozen pair. GetForUpdate acquires the row lock; all
// read-then-write sequences go through it.
type AccountRepo interface {
	Get(ctx context.Context, id uuid.UUID) (*model.Account, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Account, error)
	Create(ctx context.Context, a *model.Account) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	// AdjustBalances applies deltas to balance and amount_frozen and returns
	// the resulting amount_frozen. Callers hold the row lock.
	AdjustBalances(ctx context.Context, id uuid.UUID, balanceDelta, frozenDelta int64) (newFrozen int64, err error)
}

// RequisiteRepo manages trader payment instruments.
type RequisiteRepo interface {
	Get(ctx context.Context, id uuid.UUID) (*model.Requisite, error)
	Create(ctx context.Context, r *model.Requisite) error
	Update(ctx context.Context, r *model.Requisite) error
	Delete(ctx context.Context, id uuid.UUID) error
	// ListEligible returns active traders' requisites whose payment method
	// matches and whose [min,max] window contains amount, ordered by
	// priority ascending then created_at ascending.
	ListEligible(ctx context.Context, method model.PaymentMethod, amount int64) ([]*model.Requisite, error)
}

type TransactionRepo interface {
	Get(ctx context.Context, id uuid.UUID) (*model.Transaction, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Transaction, error)
	Create(ctx context.Context, t *model.Transaction) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.TransactionStatus) error
	Delete(ctx context.Context, id uuid.UUID) error
	// ExistsPendingByRequisite reports whether a PENDING transaction already
	// names the requisite; such a requisite is busy and cannot be matched.
	ExistsPendingByRequisite(ctx context.Context, requisiteID uuid.UUID) (bool, error)
	// ExistsPendingByMerchantAndType enforces at most one outstanding
	// request per (merchant, type).
	ExistsPendingByMerchantAndType(ctx context.Context, merchantID uuid.UUID, typ model.TransactionType) (bool, error)
	// SumByRequisiteSince sums PENDING and SUCCESS amounts for the requisite
	// created at or after since; used for the daily cap.
	SumByRequisiteSince(ctx context.Context, requisiteID uuid.UUID, since time.Time) (int64, error)
	ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]*model.Transaction, error)
}

type DisputeRepo interface {
	Get(ctx context.Context, id uuid.UUID) (*model.Dispute, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Dispute, error)
	GetByTransaction(ctx context.Context, transactionID uuid.UUID) (*model.Dispute, error)
	Create(ctx context.Context, d *model.Dispute) error
	Update(ctx context.Context, d *model.Dispute) error
	ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]*model.Dispute, error)
}

type TransferRepo interface {
	Get(ctx context.Context, id uuid.UUID) (*model.BlockchainTransfer, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*model.BlockchainTransfer, error)
	Create(ctx context.Context, bt *model.BlockchainTransfer) error
	Update(ctx context.Context, bt *model.BlockchainTransfer) error
	ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]*model.BlockchainTransfer, error)
}

type WalletRepo interface {
	Create(ctx context.Context, w *model.Wallet) error
	GetByAddress(ctx context.Context, address string) (*model.Wallet, error)
	List(ctx context.Context) ([]*model.Wallet, error)
}

// JournalOp names a ledger movement kind.
type JournalOp string

const (
	JournalOpReserve      JournalOp = "RESERVE"
	JournalOpRelease      JournalOp = "RELEASE"
	JournalOpSettleCredit JournalOp = "SETTLE_CREDIT"
	JournalOpSettleDebit  JournalOp = "SETTLE_DEBIT"
)

// RefKind names the obligation a journal entry belongs to.
type RefKind string

const (
	RefKindTransaction RefKind = "transaction"
	RefKindDispute     RefKind = "dispute"
	RefKindTransfer    RefKind = "transfer"
)

// JournalEntry is one append-only ledger movement record. For any given
// obligation the release/settle entries must sum back to the reserve amount;
// the journal is what makes that auditable.
type JournalEntry struct {
	ID           uuid.UUID
	RefKind      RefKind
	RefID        uuid.UUID
	AccountID    uuid.UUID
	Op           JournalOp
	Amount       int64
	BalanceDelta int64
	FrozenDelta  int64
	CreatedAt    time.Time
}

// JournalWriter appends ledger movement records.
type JournalWriter interface {
	Append(ctx context.Context, entries ...JournalEntry) error
}
