package models

import (
	"time"

	"github.com/google/uuid"
)

// Listing statuses
const (
	ListingStatusActive    = "active"
	ListingStatusFull      = "full"
	ListingStatusCancelled = "cancelled"
	ListingStatusExpired   = "expired"
)

// Listing is a traveler's published transport capacity on a route.
// WeightAvailableGrams is the single most contended counter in the system:
// it is only ever changed by the capacity ledger's conditional updates,
// never computed in application memory.
type Listing struct {
	ID                   uuid.UUID `json:"id"`
	TravelerID           uuid.UUID `json:"traveler_id"`
	OriginCity           string    `json:"origin_city"`
	DestinationCity      string    `json:"destination_city"`
	DepartAfter          time.Time `json:"depart_after"`
	DepartBefore         time.Time `json:"depart_before"`
	WeightTotalGrams     int       `json:"weight_total_grams"`
	WeightAvailableGrams int       `json:"weight_available_grams"`
	PricePerKG           string    `json:"price_per_kg"` // numeric as string
	Status               string    `json:"status"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}
