package models

import (
	"time"

	"github.com/google/uuid"
)

// Transaction statuses. Persisted vocabulary, keep stable.
const (
	TxStatusPending  = "pending"
	TxStatusHeld     = "held"
	TxStatusReleased = "released"
	TxStatusRefunded = "refunded"
	TxStatusFailed   = "failed"
)

// Transaction is the financial record attached 1:1 to a Request. It is
// mutated only by the escrow orchestrator, driven by processor webhooks
// or dispute rulings.
type Transaction struct {
	ID          uuid.UUID  `json:"id"`
	RequestID   uuid.UUID  `json:"request_id"`
	SessionID   *string    `json:"session_id,omitempty"` // processor checkout session
	HoldRef     *string    `json:"hold_ref,omitempty"`   // processor hold reference
	Amount      string     `json:"amount"`               // price + platform fee, numeric as string
	PlatformFee string     `json:"platform_fee"`
	Status      string     `json:"status"`
	HeldAt      *time.Time `json:"held_at,omitempty"`
	ReleasedAt  *time.Time `json:"released_at,omitempty"`
	RefundedAt  *time.Time `json:"refunded_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
