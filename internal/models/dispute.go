package models

import (
	"time"

	"github.com/google/uuid"
)

// Dispute statuses and rulings. Persisted vocabulary, keep stable.
const (
	DisputeStatusOpen            = "open"
	DisputeStatusResolvedRefund  = "resolved_refund"
	DisputeStatusResolvedRelease = "resolved_release"

	RulingRefund  = "refund"
	RulingRelease = "release"
)

func IsValidRuling(r string) bool {
	return r == RulingRefund || r == RulingRelease
}

// Dispute freezes a Request until an admin rules refund or release.
// At most one open dispute per request; resolution is final.
type Dispute struct {
	ID         uuid.UUID  `json:"id"`
	RequestID  uuid.UUID  `json:"request_id"`
	OpenerID   uuid.UUID  `json:"opener_id"`
	Reason     string     `json:"reason"`
	Status     string     `json:"status"`
	ResolvedBy *uuid.UUID `json:"resolved_by,omitempty"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
