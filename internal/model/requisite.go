package model

import (
	"time"

	"github.com/google/uuid"
)

// PaymentMethod identifies the fiat rail a requisite serves.
type PaymentMethod string

const (
	PaymentMethodCard PaymentMethod = "CARD"
	PaymentMethodSBP  PaymentMethod = "SBP"
)

// Requisite is a trader's declared payment instrument with capacity bounds.
// Exactly one of CardNumber or PhoneNumber+BankName must be set; the
// exclusivity is a creation-time invariant checked by Validate.
type Requisite struct {
	ID             uuid.UUID
	TraderID       uuid.UUID
	FullName       string
	PaymentMethod  PaymentMethod
	CardNumber     string
	PhoneNumber    string
	BankName       string
	MinAmount      int64
	MaxAmount      int64
	MaxDailyAmount int64 // 0 means no daily cap
	Priority       int32 // lower wins
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Validate enforces the payment-method exclusivity and window invariants.
func (r *Requisite) Validate() error {
	hasCard := r.CardNumber != ""
	hasPhone := r.PhoneNumber != "" && r.BankName != ""
	if hasCard == hasPhone {
		return BadRequestf("requisite must carry either a card number or phone+bank, not both")
	}
	if hasCard && r.PaymentMethod != PaymentMethodCard {
		return BadRequestf("card requisite must use payment method %s", PaymentMethodCard)
	}
	if hasPhone && r.PaymentMethod != PaymentMethodSBP {
		return BadRequestf("phone+bank requisite must use payment method %s", PaymentMethodSBP)
	}
	if r.MinAmount < 0 || r.MaxAmount < r.MinAmount {
		return BadRequestf("requisite window [%d,%d] is invalid", r.MinAmount, r.MaxAmount)
	}
	if r.MaxDailyAmount < 0 {
		return BadRequestf("max daily amount must be non-negative")
	}
	return nil
}

// Accepts reports whether the requisite can serve a request of the given
// method and amount (daily cap is checked separately against usage).
func (r *Requisite) Accepts(method PaymentMethod, amount int64) bool {
	return r.PaymentMethod == method && amount >= r.MinAmount && amount <= r.MaxAmount
}
