package models

import (
	"time"

	"github.com/google/uuid"
)

// Request statuses. These values are persisted and consumed by admin
// tooling and analytics; do not rename.
const (
	RequestStatusPendingPayment = "pending_payment"
	RequestStatusPaidHeld       = "paid_held"
	RequestStatusInTransit      = "in_transit"
	RequestStatusDelivered      = "delivered"
	RequestStatusDisputed       = "disputed"
	RequestStatusCompleted      = "completed"
	RequestStatusCancelled      = "cancelled"
	RequestStatusRefunded       = "refunded"
)

// Valid state transitions: from -> []to
var ValidRequestTransitions = map[string][]string{
	RequestStatusPendingPayment: {RequestStatusPaidHeld, RequestStatusCancelled},
	RequestStatusPaidHeld:       {RequestStatusInTransit, RequestStatusDisputed},
	RequestStatusInTransit:      {RequestStatusDelivered, RequestStatusCompleted, RequestStatusDisputed},
	RequestStatusDelivered:      {RequestStatusCompleted, RequestStatusDisputed},
	RequestStatusDisputed:       {RequestStatusCompleted, RequestStatusRefunded},
	RequestStatusCompleted:      {},
	RequestStatusCancelled:      {},
	RequestStatusRefunded:       {},
}

func IsValidRequestTransition(from, to string) bool {
	allowed, ok := ValidRequestTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminalRequestStatus reports whether a request reached its single
// terminal outcome.
func IsTerminalRequestStatus(status string) bool {
	switch status {
	case RequestStatusCompleted, RequestStatusCancelled, RequestStatusRefunded:
		return true
	}
	return false
}

// IsDisputableRequestStatus reports whether a dispute may be opened.
// Funds must already be held; completed requests are final.
func IsDisputableRequestStatus(status string) bool {
	switch status {
	case RequestStatusPaidHeld, RequestStatusInTransit, RequestStatusDelivered:
		return true
	}
	return false
}

// Request is the binding agreement created from an accepted offer and the
// aggregate root for settlement. The confirmation code hash is set when the
// escrow hold confirms; the plaintext is never persisted.
type Request struct {
	ID                   uuid.UUID `json:"id"`
	OfferID              uuid.UUID `json:"offer_id"`
	ParcelID             uuid.UUID `json:"parcel_id"`
	ListingID            uuid.UUID `json:"listing_id"`
	SenderID             uuid.UUID `json:"sender_id"`
	TravelerID           uuid.UUID `json:"traveler_id"`
	Price                string    `json:"price"`        // numeric as string
	PlatformFee          string    `json:"platform_fee"` // numeric as string
	Status               string    `json:"status"`
	ConfirmationCodeHash *string   `json:"-"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// Counterparty reports whether userID is the sender or traveler.
func (r *Request) Counterparty(userID uuid.UUID) bool {
	return r.SenderID == userID || r.TravelerID == userID
}
