package model

import (
	"time"

	"github.com/google/uuid"
)

// Wallet is a platform-controlled chain address. The matcher selects from the
// pool by current on-chain balance: minimum for deposits, maximum for
// withdrawals. Key material handling beyond storage is out of scope here.
type Wallet struct {
	ID         uuid.UUID
	Address    string
	PrivateKey string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
