package model

import (
	"time"

	"github.com/google/uuid"
)

// TransferType distinguishes the direction of a chain-side leg.
type TransferType string

const (
	TransferTypeDeposit    TransferType = "DEPOSIT"
	TransferTypeWithdrawal TransferType = "WITHDRAWAL"
)

// TransferStatus is the chain-leg status set.
type TransferStatus string

const (
	TransferStatusPending   TransferStatus = "PENDING"
	TransferStatusSuccess   TransferStatus = "SUCCESS"
	TransferStatusFailed    TransferStatus = "FAILED"
	TransferStatusCancelled TransferStatus = "CANCELLED"
)

// BlockchainTransfer is one leg of value movement between a platform wallet
// and a user. Created when the user requests a chain-side deposit or
// withdrawal address; finalized by the chain confirmer.
type BlockchainTransfer struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	ToAddress   string
	FromAddress string // empty until confirmed
	Amount      int64
	Type        TransferType
	Status      TransferStatus
	Hash        string // empty until confirmed
	ExpiresAt   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Expired reports whether the confirmation window has elapsed.
func (bt *BlockchainTransfer) Expired(now time.Time) bool {
	return now.After(bt.ExpiresAt)
}
