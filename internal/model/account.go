package model

import (
	"time"

	"github.com/google/uuid"
)

// Account is a platform user's balance record. The same account may act as a
// merchant and/or a trader. Balance is a signed integer in the smallest
// currency unit; AmountFrozen is the sum of amounts reserved against this
// account by currently-open transactions and disputes naming it as obligor.
//
// AmountFrozen is mutated only by the ledger's reserve/release/settle
// operations, never set directly by request handlers.
type Account struct {
	ID           uuid.UUID
	Balance      int64
	AmountFrozen int64
	IsActive     bool
	Is2FAEnabled bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Available returns balance minus frozen, the amount a request-initiating
// party can still commit. Reservations against traders may legally exceed
// settled balance (traders carry float), so this can be negative.
func (a *Account) Available() int64 {
	return a.Balance - a.AmountFrozen
}
