package models

import (
	"time"

	"github.com/google/uuid"
)

// Parcel statuses
const (
	ParcelStatusOpen      = "open"
	ParcelStatusMatched   = "matched"
	ParcelStatusInTransit = "in_transit"
	ParcelStatusDelivered = "delivered"
	ParcelStatusCancelled = "cancelled"
)

// Parcel is a sender's package needing transport. Photos live in external
// object storage; only their URLs are stored here.
type Parcel struct {
	ID              uuid.UUID `json:"id"`
	SenderID        uuid.UUID `json:"sender_id"`
	OriginCity      string    `json:"origin_city"`
	DestinationCity string    `json:"destination_city"`
	WeightGrams     int       `json:"weight_grams"`
	DeclaredValue   string    `json:"declared_value"` // numeric as string
	Description     *string   `json:"description,omitempty"`
	PhotoURLs       []string  `json:"photo_urls,omitempty"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
