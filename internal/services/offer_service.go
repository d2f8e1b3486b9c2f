package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/carrymarket/backend/internal/apperr"
	"github.com/carrymarket/backend/internal/config"
	"github.com/carrymarket/backend/internal/events"
	"github.com/carrymarket/backend/internal/metrics"
	"github.com/carrymarket/backend/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OfferService implements the matching engine: capacity is reserved
// speculatively when an offer is created and returned whenever an offer
// leaves the pending state without being accepted.
type OfferService struct {
	offerRepo   OfferStore
	listingRepo ListingStore
	parcelRepo  ParcelStore
	requestRepo RequestStore
	auditRepo   AuditStore
	publisher   events.Publisher
	cfg         *config.Config
	log         *zap.Logger
}

func NewOfferService(
	offerRepo OfferStore,
	listingRepo ListingStore,
	parcelRepo ParcelStore,
	requestRepo RequestStore,
	auditRepo AuditStore,
	publisher events.Publisher,
	cfg *config.Config,
	log *zap.Logger,
) *OfferService {
	return &OfferService{
		offerRepo:   offerRepo,
		listingRepo: listingRepo,
		parcelRepo:  parcelRepo,
		requestRepo: requestRepo,
		auditRepo:   auditRepo,
		publisher:   publisher,
		cfg:         cfg,
		log:         log,
	}
}

type CreateOfferParams struct {
	ParcelID  uuid.UUID
	ListingID uuid.UUID
	Price     string
}

// CreateOffer pairs a sender's parcel with a listing. The listing's
// available weight is decremented up front; a row that can't absorb the
// parcel weight rejects the offer.
func (s *OfferService) CreateOffer(ctx context.Context, senderID uuid.UUID, p CreateOfferParams) (*models.Offer, error) {
	if _, err := models.ParseAmountCents(p.Price); err != nil {
		return nil, fmt.Errorf("invalid price: %w", err)
	}

	parcel, err := s.parcelRepo.GetByID(ctx, p.ParcelID)
	if err != nil {
		return nil, err
	}
	if parcel.SenderID != senderID {
		return nil, apperr.ErrForbidden
	}
	if parcel.Status != models.ParcelStatusOpen {
		return nil, fmt.Errorf("%w: parcel is %s", apperr.ErrInvalidState, parcel.Status)
	}

	listing, err := s.listingRepo.GetByID(ctx, p.ListingID)
	if err != nil {
		return nil, err
	}
	if listing.TravelerID == senderID {
		return nil, fmt.Errorf("%w: cannot offer own listing", apperr.ErrForbidden)
	}
	if listing.Status != models.ListingStatusActive {
		return nil, fmt.Errorf("%w: listing is %s", apperr.ErrInvalidState, listing.Status)
	}

	if err := s.listingRepo.Reserve(ctx, listing.ID, parcel.WeightGrams); err != nil {
		if errors.Is(err, apperr.ErrInsufficientCapacity) {
			metrics.CapacityRejections.Inc()
		}
		return nil, err
	}

	offer := &models.Offer{
		ParcelID:  parcel.ID,
		ListingID: listing.ID,
		SenderID:  senderID,
		Price:     p.Price,
	}
	if err := s.offerRepo.Create(ctx, offer); err != nil {
		// Return the reserved weight before surfacing the error.
		if relErr := s.listingRepo.Release(ctx, listing.ID, parcel.WeightGrams); relErr != nil {
			s.log.Error("failed to release capacity after offer insert failure",
				zap.String("listing_id", listing.ID.String()),
				zap.Error(relErr),
			)
		}
		return nil, err
	}

	_ = s.auditRepo.Log(ctx, models.AuditLog{
		ActorUserID: &senderID,
		ActorType:   "user",
		Action:      "offer_created",
		EntityType:  "offer",
		EntityID:    &offer.ID,
		Meta:        map[string]any{"parcel_id": parcel.ID, "listing_id": listing.ID, "price": p.Price},
	})
	_ = s.publisher.Publish(ctx, events.StreamRequests, events.Event{
		Type: events.EventOfferCreated,
		Payload: map[string]any{
			"offer_id":    offer.ID,
			"listing_id":  listing.ID,
			"traveler_id": listing.TravelerID,
		},
	})

	return offer, nil
}

// AcceptOffer is traveler-side: it converts the offer into a Request in
// pending_payment, rejects all sibling pending offers on the parcel and
// returns their reservations.
func (s *OfferService) AcceptOffer(ctx context.Context, travelerID, offerID uuid.UUID) (*models.Request, error) {
	offer, err := s.offerRepo.GetByID(ctx, offerID)
	if err != nil {
		return nil, err
	}
	listing, err := s.listingRepo.GetByID(ctx, offer.ListingID)
	if err != nil {
		return nil, err
	}
	if listing.TravelerID != travelerID {
		return nil, apperr.ErrForbidden
	}
	if offer.Status != models.OfferStatusPending {
		return nil, fmt.Errorf("%w: offer is %s", apperr.ErrInvalidState, offer.Status)
	}

	// First CAS wins; a concurrent accept or reject loses here.
	if err := s.offerRepo.UpdateStatus(ctx, offer.ID, models.OfferStatusPending, models.OfferStatusAccepted); err != nil {
		return nil, err
	}

	priceCents, err := models.ParseAmountCents(offer.Price)
	if err != nil {
		return nil, err
	}
	feeCents := models.PlatformFeeCents(priceCents, s.cfg.PlatformFeeBPS)

	req := &models.Request{
		OfferID:     offer.ID,
		ParcelID:    offer.ParcelID,
		ListingID:   offer.ListingID,
		SenderID:    offer.SenderID,
		TravelerID:  travelerID,
		Price:       offer.Price,
		PlatformFee: models.FormatCents(feeCents),
		Status:      models.RequestStatusPendingPayment,
	}
	if err := s.requestRepo.Create(ctx, req); err != nil {
		return nil, err
	}

	if err := s.parcelRepo.UpdateStatus(ctx, offer.ParcelID,
		[]string{models.ParcelStatusOpen}, models.ParcelStatusMatched); err != nil {
		s.log.Warn("parcel not moved to matched on accept",
			zap.String("parcel_id", offer.ParcelID.String()),
			zap.Error(err),
		)
	}

	rejected, err := s.offerRepo.RejectOtherPending(ctx, offer.ParcelID, offer.ID)
	if err != nil {
		s.log.Error("failed to reject sibling offers",
			zap.String("parcel_id", offer.ParcelID.String()),
			zap.Error(err),
		)
	}
	for _, sib := range rejected {
		if err := s.listingRepo.Release(ctx, sib.ListingID, sib.ParcelWeightGrams); err != nil {
			s.log.Error("failed to release capacity for rejected sibling offer",
				zap.String("offer_id", sib.ID.String()),
				zap.Error(err),
			)
		}
	}

	_ = s.auditRepo.Log(ctx, models.AuditLog{
		ActorUserID: &travelerID,
		ActorType:   "user",
		Action:      "offer_accepted",
		EntityType:  "request",
		EntityID:    &req.ID,
		Meta:        map[string]any{"offer_id": offer.ID, "rejected_siblings": len(rejected)},
	})
	_ = s.publisher.Publish(ctx, events.StreamRequests, events.Event{
		Type: events.EventOfferAccepted,
		Payload: map[string]any{
			"offer_id":   offer.ID,
			"request_id": req.ID,
			"sender_id":  offer.SenderID,
		},
	})

	return req, nil
}

// RejectOffer is traveler-side; the parcel's reservation goes back to the
// listing.
func (s *OfferService) RejectOffer(ctx context.Context, travelerID, offerID uuid.UUID) error {
	offer, err := s.offerRepo.GetByID(ctx, offerID)
	if err != nil {
		return err
	}
	listing, err := s.listingRepo.GetByID(ctx, offer.ListingID)
	if err != nil {
		return err
	}
	if listing.TravelerID != travelerID {
		return apperr.ErrForbidden
	}
	return s.closePending(ctx, offer, models.OfferStatusRejected, &travelerID)
}

// CancelOffer is sender-side withdrawal of a still-pending offer.
func (s *OfferService) CancelOffer(ctx context.Context, senderID, offerID uuid.UUID) error {
	offer, err := s.offerRepo.GetByID(ctx, offerID)
	if err != nil {
		return err
	}
	if offer.SenderID != senderID {
		return apperr.ErrForbidden
	}
	return s.closePending(ctx, offer, models.OfferStatusRejected, &senderID)
}

func (s *OfferService) closePending(ctx context.Context, offer *models.Offer, to string, actorID *uuid.UUID) error {
	if offer.Status != models.OfferStatusPending {
		return fmt.Errorf("%w: offer is %s", apperr.ErrInvalidState, offer.Status)
	}
	if err := s.offerRepo.UpdateStatus(ctx, offer.ID, models.OfferStatusPending, to); err != nil {
		return err
	}

	parcel, err := s.parcelRepo.GetByID(ctx, offer.ParcelID)
	if err != nil {
		return err
	}
	if err := s.listingRepo.Release(ctx, offer.ListingID, parcel.WeightGrams); err != nil {
		s.log.Error("failed to release capacity for closed offer",
			zap.String("offer_id", offer.ID.String()),
			zap.Error(err),
		)
	}

	_ = s.auditRepo.Log(ctx, models.AuditLog{
		ActorUserID: actorID,
		ActorType:   "user",
		Action:      "offer_" + to,
		EntityType:  "offer",
		EntityID:    &offer.ID,
	})
	return nil
}

// ExpirePendingOffers sweeps offers that sat pending past the configured
// window. Called from the worker on a ticker.
func (s *OfferService) ExpirePendingOffers(ctx context.Context) (int, error) {
	expired, err := s.offerRepo.ListExpiredPending(ctx, s.cfg.OfferExpirySeconds)
	if err != nil {
		return 0, err
	}
	for _, o := range expired {
		if err := s.offerRepo.UpdateStatus(ctx, o.ID, models.OfferStatusPending, models.OfferStatusExpired); err != nil {
			continue // raced with an accept/reject, reservation already handled
		}
		if err := s.listingRepo.Release(ctx, o.ListingID, o.ParcelWeightGrams); err != nil {
			s.log.Error("failed to release capacity for expired offer",
				zap.String("offer_id", o.ID.String()),
				zap.Error(err),
			)
		}
		_ = s.auditRepo.Log(ctx, models.AuditLog{
			ActorType:  "system",
			Action:     "offer_expired",
			EntityType: "offer",
			EntityID:   &o.ID,
		})
	}
	return len(expired), nil
}

// GetOffer returns an offer visible to its sender or the listing's traveler.
func (s *OfferService) GetOffer(ctx context.Context, userID, offerID uuid.UUID) (*models.Offer, error) {
	offer, err := s.offerRepo.GetByID(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if offer.SenderID != userID {
		listing, err := s.listingRepo.GetByID(ctx, offer.ListingID)
		if err != nil {
			return nil, err
		}
		if listing.TravelerID != userID {
			return nil, apperr.ErrForbidden
		}
	}
	return offer, nil
}

// ListForListing returns pending offers on a listing, traveler only.
func (s *OfferService) ListForListing(ctx context.Context, travelerID, listingID uuid.UUID) ([]models.OfferWithParcel, error) {
	listing, err := s.listingRepo.GetByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing.TravelerID != travelerID {
		return nil, apperr.ErrForbidden
	}
	return s.offerRepo.ListPendingByListing(ctx, listingID)
}
