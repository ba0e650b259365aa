package model

import (
	"time"

	"github.com/google/uuid"
)

// TransactionType distinguishes merchant funding direction.
type TransactionType string

const (
	TransactionTypePayIn  TransactionType = "PAY_IN"
	TransactionTypePayOut TransactionType = "PAY_OUT"
)

// TransactionStatus is the canonical lifecycle status set.
// PENDING is initial; SUCCESS and FAILED are terminal for balance mutation;
// DISPUTED can only move to SUCCESS. There is no path back to PENDING.
type TransactionStatus string

const (
	TransactionStatusPending  TransactionStatus = "PENDING"
	TransactionStatusSuccess  TransactionStatus = "SUCCESS"
	TransactionStatusFailed   TransactionStatus = "FAILED"
	TransactionStatusDisputed TransactionStatus = "DISPUTED"
)

// Transaction is one funding or withdrawal instruction between a merchant and
// a trader. It is created the instant a match succeeds and the ledger
// reservation is made, and mutated only by the lifecycle and dispute
// resolution.
type Transaction struct {
	ID            uuid.UUID
	MerchantID    uuid.UUID
	TraderID      uuid.UUID // zero until matched
	RequisiteID   uuid.UUID // zero until matched
	Amount        int64
	PaymentMethod PaymentMethod
	Type          TransactionType
	Status        TransactionStatus
	ExpiresAt     time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Obligor returns the account whose funds are frozen while the transaction is
// open: the trader for PAY_IN, the merchant for PAY_OUT.
func (t *Transaction) Obligor() uuid.UUID {
	if t.Type == TransactionTypePayOut {
		return t.MerchantID
	}
	return t.TraderID
}

// IsParty reports whether the given account is one of the transaction's two
// named parties.
func (t *Transaction) IsParty(accountID uuid.UUID) bool {
	return accountID == t.MerchantID || accountID == t.TraderID
}

// Expired reports whether the pending window has elapsed.
func (t *Transaction) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
