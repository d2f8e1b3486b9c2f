package services

import (
	"context"
	"fmt"

	"github.com/carrymarket/backend/internal/apperr"
	"github.com/carrymarket/backend/internal/events"
	"github.com/carrymarket/backend/internal/metrics"
	"github.com/carrymarket/backend/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DisputeService freezes a request while an admin decides whether the held
// funds go to the traveler or back to the sender.
type DisputeService struct {
	disputeRepo DisputeStore
	requestRepo RequestStore
	parcelRepo  ParcelStore
	auditRepo   AuditStore
	payments    *PaymentService
	publisher   events.Publisher
	log         *zap.Logger
}

func NewDisputeService(
	disputeRepo DisputeStore,
	requestRepo RequestStore,
	parcelRepo ParcelStore,
	auditRepo AuditStore,
	payments *PaymentService,
	publisher events.Publisher,
	log *zap.Logger,
) *DisputeService {
	return &DisputeService{
		disputeRepo: disputeRepo,
		requestRepo: requestRepo,
		parcelRepo:  parcelRepo,
		auditRepo:   auditRepo,
		payments:    payments,
		publisher:   publisher,
		log:         log,
	}
}

// OpenDispute moves the request to disputed and blocks confirmation and
// settlement until an admin rules. Funds must already be held; completed
// requests are final and cannot be disputed.
func (s *DisputeService) OpenDispute(ctx context.Context, userID, requestID uuid.UUID, reason string) (*models.Dispute, error) {
	if reason == "" {
		return nil, fmt.Errorf("reason is required")
	}

	req, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !req.Counterparty(userID) {
		return nil, apperr.ErrForbidden
	}
	if !models.IsDisputableRequestStatus(req.Status) {
		return nil, fmt.Errorf("%w: cannot dispute a %s request", apperr.ErrInvalidState, req.Status)
	}

	from := req.Status
	if err := s.requestRepo.TransitionStatus(ctx, req.ID, from, models.RequestStatusDisputed); err != nil {
		return nil, err
	}
	metrics.RequestTransitions.WithLabelValues(from, models.RequestStatusDisputed).Inc()

	dispute := &models.Dispute{
		RequestID: req.ID,
		OpenerID:  userID,
		Reason:    reason,
	}
	if err := s.disputeRepo.Create(ctx, dispute); err != nil {
		return nil, err
	}

	_ = s.auditRepo.Log(ctx, models.AuditLog{
		ActorUserID: &userID,
		ActorType:   "user",
		Action:      "dispute_opened",
		EntityType:  "dispute",
		EntityID:    &dispute.ID,
		Meta:        map[string]any{"request_id": req.ID, "reason": reason},
	})
	_ = s.publisher.Publish(ctx, events.StreamRequests, events.Event{
		Type: events.EventDisputeOpened,
		Payload: map[string]any{
			"dispute_id":  dispute.ID,
			"request_id":  req.ID,
			"sender_id":   req.SenderID,
			"traveler_id": req.TravelerID,
		},
	})
	return dispute, nil
}

// Resolve applies an admin ruling: release pays the traveler and completes
// the request, refund returns the money and refunds the request.
func (s *DisputeService) Resolve(ctx context.Context, adminID, disputeID uuid.UUID, ruling string) (*models.Dispute, error) {
	if !models.IsValidRuling(ruling) {
		return nil, fmt.Errorf("%w: unknown ruling %q", apperr.ErrInvalidState, ruling)
	}

	dispute, err := s.disputeRepo.GetByID(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if dispute.Status != models.DisputeStatusOpen {
		return nil, fmt.Errorf("%w: dispute is %s", apperr.ErrInvalidState, dispute.Status)
	}

	req, err := s.requestRepo.GetByID(ctx, dispute.RequestID)
	if err != nil {
		return nil, err
	}

	var requestTo, disputeTo string
	switch ruling {
	case models.RulingRelease:
		requestTo, disputeTo = models.RequestStatusCompleted, models.DisputeStatusResolvedRelease
	case models.RulingRefund:
		requestTo, disputeTo = models.RequestStatusRefunded, models.DisputeStatusResolvedRefund
	}

	// Money first. If the processor call fails the dispute stays open and
	// the admin retries.
	switch ruling {
	case models.RulingRelease:
		err = s.payments.Release(ctx, req)
	case models.RulingRefund:
		err = s.payments.Refund(ctx, req)
	}
	if err != nil {
		return nil, err
	}

	if err := s.requestRepo.TransitionStatus(ctx, req.ID, models.RequestStatusDisputed, requestTo); err != nil {
		return nil, err
	}
	metrics.RequestTransitions.WithLabelValues(models.RequestStatusDisputed, requestTo).Inc()

	if err := s.disputeRepo.Resolve(ctx, dispute.ID, disputeTo, adminID); err != nil {
		return nil, err
	}
	dispute.Status = disputeTo
	dispute.ResolvedBy = &adminID

	if ruling == models.RulingRelease {
		if err := s.parcelRepo.UpdateStatus(ctx, req.ParcelID,
			[]string{models.ParcelStatusInTransit, models.ParcelStatusMatched}, models.ParcelStatusDelivered); err != nil {
			s.log.Warn("parcel not moved to delivered on release ruling",
				zap.String("parcel_id", req.ParcelID.String()),
				zap.Error(err),
			)
		}
	}

	_ = s.auditRepo.Log(ctx, models.AuditLog{
		ActorUserID: &adminID,
		ActorType:   "admin",
		Action:      "dispute_resolved_" + ruling,
		EntityType:  "dispute",
		EntityID:    &dispute.ID,
		Meta:        map[string]any{"request_id": req.ID},
	})
	_ = s.publisher.Publish(ctx, events.StreamRequests, events.Event{
		Type: events.EventDisputeResolved,
		Payload: map[string]any{
			"dispute_id":  dispute.ID,
			"request_id":  req.ID,
			"ruling":      ruling,
			"sender_id":   req.SenderID,
			"traveler_id": req.TravelerID,
		},
	})
	return dispute, nil
}

// ListOpen returns open disputes for the admin queue.
func (s *DisputeService) ListOpen(ctx context.Context, limit, offset int) ([]models.Dispute, error) {
	return s.disputeRepo.ListOpen(ctx, limit, offset)
}

// GetDispute returns a dispute to a request participant or its resolver.
func (s *DisputeService) GetDispute(ctx context.Context, userID uuid.UUID, isAdmin bool, disputeID uuid.UUID) (*models.Dispute, error) {
	dispute, err := s.disputeRepo.GetByID(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if isAdmin {
		return dispute, nil
	}
	req, err := s.requestRepo.GetByID(ctx, dispute.RequestID)
	if err != nil {
		return nil, err
	}
	if !req.Counterparty(userID) {
		return nil, apperr.ErrForbidden
	}
	return dispute, nil
}
