package services

import (
	"context"
	"fmt"
	"time"

	"github.com/carrymarket/backend/internal/apperr"
	"github.com/carrymarket/backend/internal/models"
	"github.com/carrymarket/backend/internal/repositories"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxListingWeightGrams = 50_000 // heavier than any airline allowance

type ListingService struct {
	listingRepo ListingStore
	offerRepo   OfferStore
	parcelRepo  ParcelStore
	auditRepo   AuditStore
	log         *zap.Logger
}

func NewListingService(
	listingRepo ListingStore,
	offerRepo OfferStore,
	parcelRepo ParcelStore,
	auditRepo AuditStore,
	log *zap.Logger,
) *ListingService {
	return &ListingService{
		listingRepo: listingRepo,
		offerRepo:   offerRepo,
		parcelRepo:  parcelRepo,
		auditRepo:   auditRepo,
		log:         log,
	}
}

type CreateListingParams struct {
	OriginCity       string
	DestinationCity  string
	DepartAfter      time.Time
	DepartBefore     time.Time
	WeightTotalGrams int
	PricePerKG       string
}

func (s *ListingService) CreateListing(ctx context.Context, travelerID uuid.UUID, p CreateListingParams) (*models.Listing, error) {
	if p.OriginCity == "" || p.DestinationCity == "" {
		return nil, fmt.Errorf("origin and destination are required")
	}
	if p.OriginCity == p.DestinationCity {
		return nil, fmt.Errorf("origin and destination must differ")
	}
	if !p.DepartBefore.After(p.DepartAfter) {
		return nil, fmt.Errorf("departure window is empty")
	}
	if p.DepartBefore.Before(time.Now()) {
		return nil, fmt.Errorf("departure window is in the past")
	}
	if p.WeightTotalGrams <= 0 || p.WeightTotalGrams > maxListingWeightGrams {
		return nil, fmt.Errorf("weight must be between 1 and %d grams", maxListingWeightGrams)
	}
	if _, err := models.ParseAmountCents(p.PricePerKG); err != nil {
		return nil, fmt.Errorf("invalid price_per_kg: %w", err)
	}

	listing := &models.Listing{
		TravelerID:       travelerID,
		OriginCity:       p.OriginCity,
		DestinationCity:  p.DestinationCity,
		DepartAfter:      p.DepartAfter,
		DepartBefore:     p.DepartBefore,
		WeightTotalGrams: p.WeightTotalGrams,
		PricePerKG:       p.PricePerKG,
		Status:           models.ListingStatusActive,
	}
	if err := s.listingRepo.Create(ctx, listing); err != nil {
		return nil, err
	}

	_ = s.auditRepo.Log(ctx, models.AuditLog{
		ActorUserID: &travelerID,
		ActorType:   "user",
		Action:      "listing_created",
		EntityType:  "listing",
		EntityID:    &listing.ID,
	})
	return listing, nil
}

// CancelListing withdraws a listing and rejects its pending offers,
// returning each reservation. Offers already accepted are unaffected.
func (s *ListingService) CancelListing(ctx context.Context, travelerID, listingID uuid.UUID) error {
	listing, err := s.listingRepo.GetByID(ctx, listingID)
	if err != nil {
		return err
	}
	if listing.TravelerID != travelerID {
		return apperr.ErrForbidden
	}
	if listing.Status != models.ListingStatusActive && listing.Status != models.ListingStatusFull {
		return fmt.Errorf("%w: listing is %s", apperr.ErrInvalidState, listing.Status)
	}

	pending, err := s.offerRepo.ListPendingByListing(ctx, listingID)
	if err != nil {
		return err
	}
	for _, o := range pending {
		if err := s.offerRepo.UpdateStatus(ctx, o.ID, models.OfferStatusPending, models.OfferStatusRejected); err != nil {
			continue
		}
		// No listing release needed: the whole listing is going away.
	}

	if err := s.listingRepo.UpdateStatus(ctx, listingID,
		[]string{models.ListingStatusActive, models.ListingStatusFull}, models.ListingStatusCancelled); err != nil {
		return err
	}

	_ = s.auditRepo.Log(ctx, models.AuditLog{
		ActorUserID: &travelerID,
		ActorType:   "user",
		Action:      "listing_cancelled",
		EntityType:  "listing",
		EntityID:    &listingID,
		Meta:        map[string]any{"rejected_offers": len(pending)},
	})
	return nil
}

func (s *ListingService) GetListing(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	return s.listingRepo.GetByID(ctx, id)
}

// SearchListings is the public route browse. Only active listings show.
func (s *ListingService) SearchListings(ctx context.Context, origin, destination string, limit, offset int) ([]models.Listing, error) {
	active := models.ListingStatusActive
	f := repositories.ListingFilter{
		Status: &active,
		Limit:  limit,
		Offset: offset,
	}
	if origin != "" {
		f.OriginCity = &origin
	}
	if destination != "" {
		f.DestinationCity = &destination
	}
	return s.listingRepo.List(ctx, f)
}

// MyListings returns all of a traveler's listings regardless of status.
func (s *ListingService) MyListings(ctx context.Context, travelerID uuid.UUID, limit, offset int) ([]models.Listing, error) {
	return s.listingRepo.List(ctx, repositories.ListingFilter{
		TravelerID: &travelerID,
		Limit:      limit,
		Offset:     offset,
	})
}

// ExpirePastListings marks listings whose departure window closed. Worker
// sweep.
func (s *ListingService) ExpirePastListings(ctx context.Context) (int, error) {
	ids, err := s.listingRepo.ExpirePast(ctx)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		lid := id
		_ = s.auditRepo.Log(ctx, models.AuditLog{
			ActorType:  "system",
			Action:     "listing_expired",
			EntityType: "listing",
			EntityID:   &lid,
		})
	}
	return len(ids), nil
}
