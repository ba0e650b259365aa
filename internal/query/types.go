package query

import (
	"time"

	"github.com/google/uuid"
)

// BalanceResponse is a user's balance view.
type BalanceResponse struct {
	UserID uuid.UUID `json:"user_id"`

	Balance      int64 `json:"balance"`
	AmountFrozen int64 `json:"amount_frozen"`
	Available    int64 `json:"available"` // balance - amount_frozen

	IsActive bool `json:"is_active"`
}

// TransactionResponse is a transaction record for API queries.
type TransactionResponse struct {
	ID            uuid.UUID `json:"id"`
	MerchantID    uuid.UUID `json:"merchant_id"`
	TraderID      uuid.UUID `json:"trader_id,omitempty"`
	RequisiteID   uuid.UUID `json:"requisite_id,omitempty"`
	Amount        int64     `json:"amount"`
	PaymentMethod string    `json:"payment_method"`
	Type          string    `json:"type"`
	Status        string    `json:"status"`
	ExpiresAt     time.Time `json:"expires_at"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// DisputeResponse is a dispute record for API queries.
type DisputeResponse struct {
	ID            uuid.UUID `json:"id"`
	TransactionID uuid.UUID `json:"transaction_id"`
	Description   string    `json:"description"`
	ImageURLs     []string  `json:"image_urls"`
	Status        string    `json:"status"`
	WinnerID      uuid.UUID `json:"winner_id,omitempty"`
	TraderReplied bool      `json:"trader_replied"`
	ExpiresAt     time.Time `json:"expires_at"`
	CreatedAt     time.Time `json:"created_at"`
}

// TransferResponse is a blockchain transfer record for API queries.
type TransferResponse struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	ToAddress   string    `json:"to_address"`
	FromAddress string    `json:"from_address,omitempty"`
	Amount      int64     `json:"amount"`
	Type        string    `json:"type"`
	Status      string    `json:"status"`
	Hash        string    `json:"hash,omitempty"`
	ExpiresAt   time.Time `json:"expires_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// RequisiteResponse is a trader requisite for API queries. The owner sees the
// full record; counter-parties only ever receive requisite details through a
// matched transaction.
type RequisiteResponse struct {
	ID             uuid.UUID `json:"id"`
	TraderID       uuid.UUID `json:"trader_id"`
	FullName       string    `json:"full_name"`
	PaymentMethod  string    `json:"payment_method"`
	CardNumber     string    `json:"card_number,omitempty"`
	PhoneNumber    string    `json:"phone_number,omitempty"`
	BankName       string    `json:"bank_name,omitempty"`
	MinAmount      int64     `json:"min_amount"`
	MaxAmount      int64     `json:"max_amount"`
	MaxDailyAmount int64     `json:"max_daily_amount"`
	Priority       int       `json:"priority"`
	CreatedAt      time.Time `json:"created_at"`
}

// JournalEntryResponse is one ledger movement for API queries.
type JournalEntryResponse struct {
	ID           uuid.UUID `json:"id"`
	RefKind      string    `json:"ref_kind"`
	RefID        uuid.UUID `json:"ref_id"`
	AccountID    uuid.UUID `json:"account_id"`
	Op           string    `json:"op"`
	Amount       int64     `json:"amount"`
	BalanceDelta int64     `json:"balance_delta"`
	FrozenDelta  int64     `json:"frozen_delta"`
	CreatedAt    time.Time `json:"created_at"`
}
