package dto

import "time"

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type CreateListingRequest struct {
	OriginCity       string    `json:"origin_city"`
	DestinationCity  string    `json:"destination_city"`
	DepartAfter      time.Time `json:"depart_after"`
	DepartBefore     time.Time `json:"depart_before"`
	WeightTotalGrams int       `json:"weight_total_grams"`
	PricePerKG       string    `json:"price_per_kg"`
}

type CreateParcelRequest struct {
	OriginCity      string   `json:"origin_city"`
	DestinationCity string   `json:"destination_city"`
	WeightGrams     int      `json:"weight_grams"`
	DeclaredValue   string   `json:"declared_value"`
	Description     *string  `json:"description,omitempty"`
	PhotoURLs       []string `json:"photo_urls,omitempty"`
}

type CreateOfferRequest struct {
	ParcelID  string `json:"parcel_id"`
	ListingID string `json:"listing_id"`
	Price     string `json:"price"`
}

type ConfirmDeliveryRequest struct {
	Code string `json:"code"`
}

type OpenDisputeRequest struct {
	Reason string `json:"reason"`
}

type ResolveDisputeRequest struct {
	Ruling string `json:"ruling"` // refund or release
}
