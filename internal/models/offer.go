package models

import (
	"time"

	"github.com/google/uuid"
)

// Offer statuses
const (
	OfferStatusPending  = "pending"
	OfferStatusAccepted = "accepted"
	OfferStatusRejected = "rejected"
	OfferStatusExpired  = "expired"
)

// Offer proposes pairing one Parcel with one Listing at a price.
// A pending offer holds a speculative capacity reservation on its listing;
// the reservation is returned when the offer is rejected, cancelled or
// expired. A parcel has at most one pending/accepted offer at a time
// (enforced by a partial unique index).
type Offer struct {
	ID        uuid.UUID `json:"id"`
	ParcelID  uuid.UUID `json:"parcel_id"`
	ListingID uuid.UUID `json:"listing_id"`
	SenderID  uuid.UUID `json:"sender_id"`
	Price     string    `json:"price"` // numeric as string
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OfferWithParcel embeds Offer plus the parcel weight needed to release
// capacity without an extra query.
type OfferWithParcel struct {
	Offer
	ParcelWeightGrams int `json:"parcel_weight_grams"`
}
