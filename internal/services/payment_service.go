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

// PaymentService orchestrates escrow: checkout creation, processor webhook
// ingestion, and fund release/refund. Webhooks are deduplicated by event id,
// so every handler path here must be an idempotent no-op on replay.
type PaymentService struct {
	requestRepo RequestStore
	txRepo      TransactionStore
	userRepo    UserStore
	auditRepo   AuditStore
	processor   PaymentProcessor
	publisher   events.Publisher
	cfg         *config.Config
	log         *zap.Logger
}

func NewPaymentService(
	requestRepo RequestStore,
	txRepo TransactionStore,
	userRepo UserStore,
	auditRepo AuditStore,
	processor PaymentProcessor,
	publisher events.Publisher,
	cfg *config.Config,
	log *zap.Logger,
) *PaymentService {
	return &PaymentService{
		requestRepo: requestRepo,
		txRepo:      txRepo,
		userRepo:    userRepo,
		auditRepo:   auditRepo,
		processor:   processor,
		publisher:   publisher,
		cfg:         cfg,
		log:         log,
	}
}

// CreateCheckout opens a hold session with the processor for price + fee.
// Sender only, pending_payment only. Safe to call again after a failed
// session: the transaction row is upserted while still pending/failed.
func (s *PaymentService) CreateCheckout(ctx context.Context, senderID, requestID uuid.UUID) (*CheckoutSession, error) {
	req, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.SenderID != senderID {
		return nil, apperr.ErrForbidden
	}
	if req.Status != models.RequestStatusPendingPayment {
		return nil, fmt.Errorf("%w: request is %s", apperr.ErrInvalidState, req.Status)
	}

	// Refuse before opening a hold the transaction row could never accept,
	// otherwise the fresh hold is orphaned at the processor.
	if existing, err := s.txRepo.GetByRequestID(ctx, requestID); err == nil {
		if existing.Status != models.TxStatusPending && existing.Status != models.TxStatusFailed {
			return nil, fmt.Errorf("%w: payment already %s", apperr.ErrConflict, existing.Status)
		}
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	priceCents, err := models.ParseAmountCents(req.Price)
	if err != nil {
		return nil, err
	}
	feeCents, err := models.ParseAmountCents(req.PlatformFee)
	if err != nil {
		return nil, err
	}

	session, err := s.processor.OpenHold(ctx, OpenHoldParams{
		RequestID:   req.ID,
		PayerID:     senderID,
		AmountCents: priceCents + feeCents,
		FeeCents:    feeCents,
		Currency:    "USD",
	})
	if err != nil {
		return nil, err
	}

	tx := &models.Transaction{
		RequestID:   req.ID,
		SessionID:   &session.SessionID,
		Amount:      models.FormatCents(priceCents + feeCents),
		PlatformFee: req.PlatformFee,
		Status:      models.TxStatusPending,
	}
	if err := s.txRepo.UpsertCheckout(ctx, tx); err != nil {
		return nil, err
	}

	_ = s.auditRepo.Log(ctx, models.AuditLog{
		ActorUserID: &senderID,
		ActorType:   "user",
		Action:      "checkout_created",
		EntityType:  "request",
		EntityID:    &req.ID,
		Meta:        map[string]any{"session_id": session.SessionID, "amount": tx.Amount},
	})

	return session, nil
}

// HandleProcessorEvent ingests a verified webhook. The event id is checked
// up front and recorded only after the event's effects are durable: a
// delivery that fails mid-way returns non-2xx without burning its id, so
// the processor's redelivery of the same id is reprocessed. Every handler
// path is a CAS-guarded idempotent step, which makes that replay safe.
func (s *PaymentService) HandleProcessorEvent(ctx context.Context, ev ProcessorEvent) error {
	if ev.Type == EventAccountUpdated {
		metrics.ProcessorEvents.WithLabelValues(ev.Type, "ok").Inc()
		return s.userRepo.SetPayoutsReady(ctx, ev.AccountRef, ev.Ready)
	}

	seen, err := s.txRepo.SeenEvent(ctx, ev.EventID)
	if err != nil {
		metrics.ProcessorEvents.WithLabelValues(ev.Type, "error").Inc()
		return err
	}
	if seen {
		metrics.ProcessorEvents.WithLabelValues(ev.Type, "duplicate").Inc()
		return nil
	}

	switch ev.Type {
	case EventHoldConfirmed:
		err = s.handleHoldConfirmed(ctx, ev)
	case EventHoldFailed:
		err = s.handleHoldFailed(ctx, ev)
	default:
		s.log.Warn("unknown processor event type", zap.String("type", ev.Type))
		metrics.ProcessorEvents.WithLabelValues(ev.Type, "unknown").Inc()
		return nil
	}
	if err != nil {
		metrics.ProcessorEvents.WithLabelValues(ev.Type, "error").Inc()
		return err
	}

	if _, err := s.txRepo.RecordEvent(ctx, ev.EventID, ev.Type, ev.RequestID); err != nil {
		metrics.ProcessorEvents.WithLabelValues(ev.Type, "error").Inc()
		return err
	}
	metrics.ProcessorEvents.WithLabelValues(ev.Type, "ok").Inc()
	return nil
}

func (s *PaymentService) handleHoldConfirmed(ctx context.Context, ev ProcessorEvent) error {
	held, err := s.txRepo.MarkHeld(ctx, ev.RequestID, ev.HoldRef)
	if err != nil {
		return err
	}
	if !held {
		tx, err := s.txRepo.GetByRequestID(ctx, ev.RequestID)
		if err != nil {
			return err
		}
		if tx.Status != models.TxStatusHeld {
			// Out-of-order delivery: a hold_failed or a settlement already
			// decided this transaction. The request must not advance on a
			// hold that is not actually held.
			s.log.Warn("stale hold_confirmed dropped",
				zap.String("request_id", ev.RequestID.String()),
				zap.String("transaction_status", tx.Status),
			)
			_ = s.auditRepo.Log(ctx, models.AuditLog{
				ActorType:  "processor",
				Action:     "stale_hold_confirmed_dropped",
				EntityType: "request",
				EntityID:   &ev.RequestID,
				Meta:       map[string]any{"hold_ref": ev.HoldRef, "transaction_status": tx.Status},
			})
			return nil
		}
	}

	req, err := s.requestRepo.GetByID(ctx, ev.RequestID)
	if err != nil {
		return err
	}
	if req.Status == models.RequestStatusCancelled || req.Status == models.RequestStatusRefunded {
		// The hold landed after the request died: sender cancel or the
		// checkout-timeout sweep won the race against the webhook. Money
		// cannot stay parked on a dead request; send it back. A completed
		// request with a held transaction is not handled here, that is the
		// settlement sweep's release path.
		_ = s.auditRepo.Log(ctx, models.AuditLog{
			ActorType:  "processor",
			Action:     "late_hold_refunded",
			EntityType: "request",
			EntityID:   &req.ID,
			Meta:       map[string]any{"hold_ref": ev.HoldRef, "request_status": req.Status},
		})
		return s.Refund(ctx, req)
	}
	// Repair path: a previous delivery may have marked the transaction held
	// and crashed before advancing the request.
	if req.Status != models.RequestStatusPendingPayment {
		return nil
	}

	code, hash, err := GenerateConfirmationCode()
	if err != nil {
		return err
	}
	if err := s.requestRepo.TransitionToPaidHeld(ctx, req.ID, hash); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return nil // lost the race to a concurrent delivery
		}
		return err
	}
	metrics.RequestTransitions.WithLabelValues(models.RequestStatusPendingPayment, models.RequestStatusPaidHeld).Inc()

	_ = s.auditRepo.Log(ctx, models.AuditLog{
		ActorType:  "processor",
		Action:     "payment_held",
		EntityType: "request",
		EntityID:   &req.ID,
		Meta:       map[string]any{"hold_ref": ev.HoldRef},
	})
	_ = s.publisher.Publish(ctx, events.StreamRequests, events.Event{
		Type: events.EventPaymentHeld,
		Payload: map[string]any{
			"request_id":  req.ID,
			"sender_id":   req.SenderID,
			"traveler_id": req.TravelerID,
		},
	})
	// The plaintext code is delivered to the sender exactly once, via the
	// notification stream. It is never persisted.
	_ = s.publisher.Publish(ctx, events.StreamRequests, events.Event{
		Type: events.EventConfirmationCode,
		Payload: map[string]any{
			"request_id":        req.ID,
			"sender_id":         req.SenderID,
			"confirmation_code": code,
		},
	})
	return nil
}

func (s *PaymentService) handleHoldFailed(ctx context.Context, ev ProcessorEvent) error {
	if _, err := s.txRepo.MarkFailed(ctx, ev.RequestID); err != nil {
		return err
	}
	_ = s.auditRepo.Log(ctx, models.AuditLog{
		ActorType:  "processor",
		Action:     "payment_failed",
		EntityType: "request",
		EntityID:   &ev.RequestID,
	})
	_ = s.publisher.Publish(ctx, events.StreamRequests, events.Event{
		Type:    events.EventPaymentFailed,
		Payload: map[string]any{"request_id": ev.RequestID},
	})
	return nil
}

// Release captures the held amount to the traveler's payout account. The
// traveler must have completed processor onboarding. Already-released
// transactions are a no-op so settlement retries stay safe.
func (s *PaymentService) Release(ctx context.Context, req *models.Request) error {
	tx, err := s.txRepo.GetByRequestID(ctx, req.ID)
	if err != nil {
		return err
	}
	if tx.Status == models.TxStatusReleased {
		return nil
	}
	if tx.Status != models.TxStatusHeld || tx.HoldRef == nil {
		return fmt.Errorf("%w: transaction is %s", apperr.ErrInvalidState, tx.Status)
	}

	traveler, err := s.userRepo.GetByID(ctx, req.TravelerID)
	if err != nil {
		return err
	}
	if !traveler.PayoutsReady || traveler.PayoutAccountRef == nil {
		return apperr.ErrPayoutAccountNotReady
	}

	if err := s.processor.Capture(ctx, *tx.HoldRef, *traveler.PayoutAccountRef); err != nil {
		return err
	}
	if _, err := s.txRepo.MarkReleased(ctx, req.ID); err != nil {
		return err
	}

	_ = s.auditRepo.Log(ctx, models.AuditLog{
		ActorType:  "system",
		Action:     "funds_released",
		EntityType: "request",
		EntityID:   &req.ID,
		Meta:       map[string]any{"traveler_id": req.TravelerID, "amount": tx.Amount},
	})
	return nil
}

// Refund reverses a held amount back to the sender. Idempotent.
func (s *PaymentService) Refund(ctx context.Context, req *models.Request) error {
	tx, err := s.txRepo.GetByRequestID(ctx, req.ID)
	if err != nil {
		return err
	}
	if tx.Status == models.TxStatusRefunded {
		return nil
	}
	if tx.Status != models.TxStatusHeld || tx.HoldRef == nil {
		return fmt.Errorf("%w: transaction is %s", apperr.ErrInvalidState, tx.Status)
	}

	if err := s.processor.Refund(ctx, *tx.HoldRef); err != nil {
		return err
	}
	if _, err := s.txRepo.MarkRefunded(ctx, req.ID); err != nil {
		return err
	}

	_ = s.auditRepo.Log(ctx, models.AuditLog{
		ActorType:  "system",
		Action:     "funds_refunded",
		EntityType: "request",
		EntityID:   &req.ID,
		Meta:       map[string]any{"sender_id": req.SenderID, "amount": tx.Amount},
	})
	return nil
}

// PayoutOnboardingLink creates (or re-issues) the processor onboarding
// link a traveler must complete before funds can be released to them.
func (s *PaymentService) PayoutOnboardingLink(ctx context.Context, userID uuid.UUID) (*OnboardingLink, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	link, err := s.processor.CreateOnboardingLink(ctx, user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	if user.PayoutAccountRef == nil {
		if err := s.userRepo.SetPayoutAccount(ctx, user.ID, link.AccountRef); err != nil {
			return nil, err
		}
	}
	return link, nil
}

// GetTransaction returns the financial record for one of the request's
// participants.
func (s *PaymentService) GetTransaction(ctx context.Context, userID, requestID uuid.UUID) (*models.Transaction, error) {
	req, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !req.Counterparty(userID) {
		return nil, apperr.ErrForbidden
	}
	return s.txRepo.GetByRequestID(ctx, requestID)
}
