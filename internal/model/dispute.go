package model

import (
	"time"

	"github.com/google/uuid"
)

// DisputeStatus: PENDING is initial, CLOSED is terminal.
type DisputeStatus string

const (
	DisputeStatusPending DisputeStatus = "PENDING"
	DisputeStatusClosed  DisputeStatus = "CLOSED"
)

// Dispute is a post-completion challenge to a transaction's outcome. At most
// one dispute exists per transaction. Description and ImageURLs are
// append-only: the merchant contributes at creation, the trader at most once
// before resolution; prior contributions are never edited or deleted.
type Dispute struct {
	ID            uuid.UUID
	TransactionID uuid.UUID
	Description   string
	ImageURLs     []string
	Status        DisputeStatus
	WinnerID      uuid.UUID // zero until resolved; one of the two parties
	TraderReplied bool
	ExpiresAt     time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Expired reports whether the resolution window has elapsed.
func (d *Dispute) Expired(now time.Time) bool {
	return now.After(d.ExpiresAt)
}
