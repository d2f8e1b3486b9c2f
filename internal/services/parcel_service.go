package services

import (
	"context"
	"fmt"
	"net/url"

	"github.com/carrymarket/backend/internal/apperr"
	"github.com/carrymarket/backend/internal/models"
	"github.com/carrymarket/backend/internal/repositories"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	maxParcelWeightGrams = 30_000
	maxParcelPhotos      = 10
)

type ParcelService struct {
	parcelRepo  ParcelStore
	offerRepo   OfferStore
	listingRepo ListingStore
	auditRepo   AuditStore
	log         *zap.Logger
}

func NewParcelService(
	parcelRepo ParcelStore,
	offerRepo OfferStore,
	listingRepo ListingStore,
	auditRepo AuditStore,
	log *zap.Logger,
) *ParcelService {
	return &ParcelService{
		parcelRepo:  parcelRepo,
		offerRepo:   offerRepo,
		listingRepo: listingRepo,
		auditRepo:   auditRepo,
		log:         log,
	}
}

type CreateParcelParams struct {
	OriginCity      string
	DestinationCity string
	WeightGrams     int
	DeclaredValue   string
	Description     *string
	PhotoURLs       []string
}

func (s *ParcelService) CreateParcel(ctx context.Context, senderID uuid.UUID, p CreateParcelParams) (*models.Parcel, error) {
	if p.OriginCity == "" || p.DestinationCity == "" {
		return nil, fmt.Errorf("origin and destination are required")
	}
	if p.WeightGrams <= 0 || p.WeightGrams > maxParcelWeightGrams {
		return nil, fmt.Errorf("weight must be between 1 and %d grams", maxParcelWeightGrams)
	}
	if _, err := models.ParseAmountCents(p.DeclaredValue); err != nil {
		return nil, fmt.Errorf("invalid declared_value: %w", err)
	}
	if len(p.PhotoURLs) > maxParcelPhotos {
		return nil, fmt.Errorf("too many photos, limit is %d", maxParcelPhotos)
	}
	for _, raw := range p.PhotoURLs {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, fmt.Errorf("invalid photo url: %s", raw)
		}
	}

	parcel := &models.Parcel{
		SenderID:        senderID,
		OriginCity:      p.OriginCity,
		DestinationCity: p.DestinationCity,
		WeightGrams:     p.WeightGrams,
		DeclaredValue:   p.DeclaredValue,
		Description:     p.Description,
		PhotoURLs:       p.PhotoURLs,
		Status:          models.ParcelStatusOpen,
	}
	if err := s.parcelRepo.Create(ctx, parcel); err != nil {
		return nil, err
	}

	_ = s.auditRepo.Log(ctx, models.AuditLog{
		ActorUserID: &senderID,
		ActorType:   "user",
		Action:      "parcel_created",
		EntityType:  "parcel",
		EntityID:    &parcel.ID,
	})
	return parcel, nil
}

// CancelParcel withdraws an open parcel. A still-pending offer on it is
// rejected and its reservation returned.
func (s *ParcelService) CancelParcel(ctx context.Context, senderID, parcelID uuid.UUID) error {
	parcel, err := s.parcelRepo.GetByID(ctx, parcelID)
	if err != nil {
		return err
	}
	if parcel.SenderID != senderID {
		return apperr.ErrForbidden
	}
	if parcel.Status != models.ParcelStatusOpen {
		return fmt.Errorf("%w: parcel is %s", apperr.ErrInvalidState, parcel.Status)
	}

	if err := s.parcelRepo.UpdateStatus(ctx, parcelID,
		[]string{models.ParcelStatusOpen}, models.ParcelStatusCancelled); err != nil {
		return err
	}

	offer, err := s.offerRepo.GetActiveByParcel(ctx, parcelID)
	if err == nil && offer.Status == models.OfferStatusPending {
		if err := s.offerRepo.UpdateStatus(ctx, offer.ID, models.OfferStatusPending, models.OfferStatusRejected); err == nil {
			if relErr := s.listingRepo.Release(ctx, offer.ListingID, parcel.WeightGrams); relErr != nil {
				s.log.Error("failed to release capacity on parcel cancel",
					zap.String("offer_id", offer.ID.String()),
					zap.Error(relErr),
				)
			}
		}
	}

	_ = s.auditRepo.Log(ctx, models.AuditLog{
		ActorUserID: &senderID,
		ActorType:   "user",
		Action:      "parcel_cancelled",
		EntityType:  "parcel",
		EntityID:    &parcelID,
	})
	return nil
}

func (s *ParcelService) GetParcel(ctx context.Context, id uuid.UUID) (*models.Parcel, error) {
	return s.parcelRepo.GetByID(ctx, id)
}

// MyParcels returns all of a sender's parcels.
func (s *ParcelService) MyParcels(ctx context.Context, senderID uuid.UUID, status string, limit, offset int) ([]models.Parcel, error) {
	f := repositories.ParcelFilter{
		SenderID: &senderID,
		Limit:    limit,
		Offset:   offset,
	}
	if status != "" {
		f.Status = &status
	}
	return s.parcelRepo.List(ctx, f)
}
