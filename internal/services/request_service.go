package services

import (
	"context"
	"fmt"

	"github.com/carrymarket/backend/internal/apperr"
	"github.com/carrymarket/backend/internal/config"
	"github.com/carrymarket/backend/internal/events"
	"github.com/carrymarket/backend/internal/metrics"
	"github.com/carrymarket/backend/internal/models"
	"github.com/carrymarket/backend/internal/repositories"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RequestService drives the request lifecycle from payment hold to
// settlement. Every transition is a conditional write keyed on the
// expected current status, so concurrent actors cannot double-apply one.
type RequestService struct {
	requestRepo RequestStore
	parcelRepo  ParcelStore
	listingRepo ListingStore
	auditRepo   AuditStore
	payments    *PaymentService
	publisher   events.Publisher
	cfg         *config.Config
	log         *zap.Logger
}

func NewRequestService(
	requestRepo RequestStore,
	parcelRepo ParcelStore,
	listingRepo ListingStore,
	auditRepo AuditStore,
	payments *PaymentService,
	publisher events.Publisher,
	cfg *config.Config,
	log *zap.Logger,
) *RequestService {
	return &RequestService{
		requestRepo: requestRepo,
		parcelRepo:  parcelRepo,
		listingRepo: listingRepo,
		auditRepo:   auditRepo,
		payments:    payments,
		publisher:   publisher,
		cfg:         cfg,
		log:         log,
	}
}

// transition performs a validated CAS status change with audit and event.
func (s *RequestService) transition(ctx context.Context, req *models.Request, to string, actorID *uuid.UUID, actorType string) error {
	if !models.IsValidRequestTransition(req.Status, to) {
		return fmt.Errorf("%w: cannot go from %s to %s", apperr.ErrInvalidState, req.Status, to)
	}
	from := req.Status
	if err := s.requestRepo.TransitionStatus(ctx, req.ID, from, to); err != nil {
		return err
	}
	req.Status = to
	metrics.RequestTransitions.WithLabelValues(from, to).Inc()

	_ = s.auditRepo.Log(ctx, models.AuditLog{
		ActorUserID: actorID,
		ActorType:   actorType,
		Action:      fmt.Sprintf("request_%s_to_%s", from, to),
		EntityType:  "request",
		EntityID:    &req.ID,
	})
	_ = s.publisher.Publish(ctx, events.StreamRequests, events.Event{
		Type: events.EventRequestTransition,
		Payload: map[string]any{
			"request_id":  req.ID,
			"from":        from,
			"to":          to,
			"sender_id":   req.SenderID,
			"traveler_id": req.TravelerID,
		},
	})
	return nil
}

// MarkPickedUp is traveler-side: funds are held, the parcel changed hands.
func (s *RequestService) MarkPickedUp(ctx context.Context, travelerID, requestID uuid.UUID) (*models.Request, error) {
	req, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.TravelerID != travelerID {
		return nil, apperr.ErrForbidden
	}
	if req.Status != models.RequestStatusPaidHeld {
		return nil, fmt.Errorf("%w: request is %s", apperr.ErrInvalidState, req.Status)
	}

	if err := s.transition(ctx, req, models.RequestStatusInTransit, &travelerID, "user"); err != nil {
		return nil, err
	}
	if err := s.parcelRepo.UpdateStatus(ctx, req.ParcelID,
		[]string{models.ParcelStatusMatched}, models.ParcelStatusInTransit); err != nil {
		s.log.Warn("parcel not moved to in_transit",
			zap.String("parcel_id", req.ParcelID.String()),
			zap.Error(err),
		)
	}
	return req, nil
}

// MarkDelivered is traveler-side: the parcel reached the recipient and the
// traveler is waiting for the code.
func (s *RequestService) MarkDelivered(ctx context.Context, travelerID, requestID uuid.UUID) (*models.Request, error) {
	req, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.TravelerID != travelerID {
		return nil, apperr.ErrForbidden
	}
	if req.Status != models.RequestStatusInTransit {
		return nil, fmt.Errorf("%w: request is %s", apperr.ErrInvalidState, req.Status)
	}
	if err := s.transition(ctx, req, models.RequestStatusDelivered, &travelerID, "user"); err != nil {
		return nil, err
	}
	return req, nil
}

// ConfirmDelivery closes the happy path: either participant presents the
// confirmation code, funds release to the traveler and the request
// completes. A disputed request refuses confirmation until resolved.
func (s *RequestService) ConfirmDelivery(ctx context.Context, userID, requestID uuid.UUID, code string) (*models.Request, error) {
	req, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !req.Counterparty(userID) {
		return nil, apperr.ErrForbidden
	}
	if req.Status == models.RequestStatusDisputed {
		return nil, apperr.ErrDisputed
	}
	if req.Status != models.RequestStatusInTransit && req.Status != models.RequestStatusDelivered {
		return nil, fmt.Errorf("%w: request is %s", apperr.ErrInvalidState, req.Status)
	}
	if req.ConfirmationCodeHash == nil {
		return nil, fmt.Errorf("%w: no confirmation code issued", apperr.ErrInvalidState)
	}
	if err := VerifyConfirmationCode(*req.ConfirmationCodeHash, code); err != nil {
		return nil, err
	}

	// CAS first: a concurrent confirm loses here and surfaces as a
	// conflict rather than a double release.
	if err := s.transition(ctx, req, models.RequestStatusCompleted, &userID, "user"); err != nil {
		return nil, err
	}

	if err := s.payments.Release(ctx, req); err != nil {
		// Request is completed but funds are stuck; settlement retries from
		// the worker pick this up. Recorded so the deferral is visible on
		// the request's event feed, not just in logs.
		s.log.Error("release failed after delivery confirmation",
			zap.String("request_id", req.ID.String()),
			zap.Error(err),
		)
		_ = s.auditRepo.Log(ctx, models.AuditLog{
			ActorType:  "system",
			Action:     "settlement_deferred",
			EntityType: "request",
			EntityID:   &req.ID,
			Meta:       map[string]any{"reason": err.Error()},
		})
	}

	if err := s.parcelRepo.UpdateStatus(ctx, req.ParcelID,
		[]string{models.ParcelStatusInTransit, models.ParcelStatusMatched}, models.ParcelStatusDelivered); err != nil {
		s.log.Warn("parcel not moved to delivered",
			zap.String("parcel_id", req.ParcelID.String()),
			zap.Error(err),
		)
	}

	_ = s.publisher.Publish(ctx, events.StreamRequests, events.Event{
		Type: events.EventDeliveryConfirmed,
		Payload: map[string]any{
			"request_id":  req.ID,
			"sender_id":   req.SenderID,
			"traveler_id": req.TravelerID,
		},
	})
	return req, nil
}

// CancelRequest abandons a request before payment. Either participant may
// cancel; the parcel reopens and the listing gets its weight back.
func (s *RequestService) CancelRequest(ctx context.Context, userID, requestID uuid.UUID) (*models.Request, error) {
	req, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !req.Counterparty(userID) {
		return nil, apperr.ErrForbidden
	}
	if req.Status != models.RequestStatusPendingPayment {
		return nil, fmt.Errorf("%w: request is %s", apperr.ErrInvalidState, req.Status)
	}

	if err := s.transition(ctx, req, models.RequestStatusCancelled, &userID, "user"); err != nil {
		return nil, err
	}
	s.unwind(ctx, req)
	return req, nil
}

// CancelTimedOutRequests sweeps requests that sat in pending_payment past
// the checkout window. Called from the worker on a ticker.
func (s *RequestService) CancelTimedOutRequests(ctx context.Context) (int, error) {
	stale, err := s.requestRepo.ListTimedOutPendingPayment(ctx, s.cfg.CheckoutExpirySeconds)
	if err != nil {
		return 0, err
	}
	n := 0
	for i := range stale {
		req := &stale[i]
		if err := s.transition(ctx, req, models.RequestStatusCancelled, nil, "system"); err != nil {
			continue // raced with a payment or manual cancel
		}
		s.unwind(ctx, req)
		n++
	}
	return n, nil
}

// unwind reopens the parcel and returns reserved weight after a
// pre-payment cancellation.
func (s *RequestService) unwind(ctx context.Context, req *models.Request) {
	parcel, err := s.parcelRepo.GetByID(ctx, req.ParcelID)
	if err != nil {
		s.log.Error("cancel unwind: parcel lookup failed",
			zap.String("request_id", req.ID.String()),
			zap.Error(err),
		)
		return
	}
	if err := s.parcelRepo.UpdateStatus(ctx, req.ParcelID,
		[]string{models.ParcelStatusMatched}, models.ParcelStatusOpen); err != nil {
		s.log.Warn("cancel unwind: parcel not reopened",
			zap.String("parcel_id", req.ParcelID.String()),
			zap.Error(err),
		)
	}
	if err := s.listingRepo.Release(ctx, req.ListingID, parcel.WeightGrams); err != nil {
		s.log.Error("cancel unwind: capacity not released",
			zap.String("listing_id", req.ListingID.String()),
			zap.Error(err),
		)
	}
}

// GetRequest returns a request to one of its participants.
func (s *RequestService) GetRequest(ctx context.Context, userID, requestID uuid.UUID) (*models.Request, error) {
	req, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !req.Counterparty(userID) {
		return nil, apperr.ErrForbidden
	}
	return req, nil
}

// ListRequestEvents returns the audit trail for a request, visible to its
// participants only.
func (s *RequestService) ListRequestEvents(ctx context.Context, userID, requestID uuid.UUID, limit, offset int) ([]models.AuditLog, error) {
	req, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !req.Counterparty(userID) {
		return nil, apperr.ErrForbidden
	}
	return s.auditRepo.GetByEntity(ctx, "request", req.ID, limit, offset)
}

// ListRequests returns the caller's requests, optionally filtered by status.
func (s *RequestService) ListRequests(ctx context.Context, userID uuid.UUID, status string, limit, offset int) ([]models.Request, error) {
	f := repositories.RequestFilter{
		ParticipantID: &userID,
		Limit:         limit,
		Offset:        offset,
	}
	if status != "" {
		f.Status = &status
	}
	return s.requestRepo.List(ctx, f)
}
