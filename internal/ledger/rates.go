package ledger

import "github.com/shopspring/decimal"

// Rate arithmetic on smallest-unit integer amounts. Credits round down and
// debits round up, so rounding residue never favors the obligor.

// CreditAfterFee returns amount * (1 - rate), floored.
func CreditAfterFee(amount int64, rate decimal.Decimal) int64 {
	return decimal.NewFromInt(amount).
		Mul(decimal.NewFromInt(1).Sub(rate)).
		Floor().
		IntPart()
}

// DebitWithPenalty returns amount * (1 + rate), ceiled.
func DebitWithPenalty(amount int64, rate decimal.Decimal) int64 {
	return decimal.NewFromInt(amount).
		Mul(decimal.NewFromInt(1).Add(rate)).
		Ceil().
		IntPart()
}
