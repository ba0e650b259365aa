package ledger_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"SettleCore/internal/ledger"
)

func rate(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCreditAfterFee(t *testing.T) {
	cases := []struct {
		amount int64
		rate   string
		want   int64
	}{
		{1000, "0.02", 980},
		{999, "0.015", 984}, // 984.015 floors
		{1, "0.02", 0},      // fee eats amounts below a unit
		{1000, "0", 1000},
		{0, "0.02", 0},
	}
	for _, c := range cases {
		if got := ledger.CreditAfterFee(c.amount, rate(c.rate)); got != c.want {
			t.Errorf("CreditAfterFee(%d, %s) = %d, want %d", c.amount, c.rate, got, c.want)
		}
	}
}

func TestDebitWithPenalty(t *testing.T) {
	cases := []struct {
		amount int64
		rate   string
		want   int64
	}{
		{1000, "0.02", 1020},
		{999, "0.05", 1049}, // 1048.95 ceils
		{1, "0.02", 2},      // debit rounding never undercharges
		{1000, "0", 1000},
	}
	for _, c := range cases {
		if got := ledger.DebitWithPenalty(c.amount, rate(c.rate)); got != c.want {
			t.Errorf("DebitWithPenalty(%d, %s) = %d, want %d", c.amount, c.rate, got, c.want)
		}
	}
}

func TestRoundingNeverFavorsObligor(t *testing.T) {
	r := rate("0.013")
	for amount := int64(1); amount < 2000; amount += 97 {
		credit := ledger.CreditAfterFee(amount, r)
		debit := ledger.DebitWithPenalty(amount, r)
		if credit > amount {
			t.Fatalf("credit %d exceeds amount %d", credit, amount)
		}
		if debit < amount {
			t.Fatalf("debit %d below amount %d", debit, amount)
		}
	}
}
