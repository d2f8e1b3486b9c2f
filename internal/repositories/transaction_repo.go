package repositories

import (
	"context"
	"errors"

	"github.com/carrymarket/backend/internal/apperr"
	"github.com/carrymarket/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TransactionRepo struct {
	pool *pgxpool.Pool
}

func NewTransactionRepo(pool *pgxpool.Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

// Create inserts the pending transaction for a request's checkout. The
// unique index on request_id keeps the record 1:1; a retried checkout
// reuses the row via UpsertCheckout instead.
func (r *TransactionRepo) Create(ctx context.Context, t *models.Transaction) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO transactions (request_id, session_id, amount, platform_fee, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`, t.RequestID, t.SessionID, t.Amount, t.PlatformFee, t.Status,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.ErrConflict
		}
		return err
	}
	return nil
}

// UpsertCheckout creates the transaction or, after a failed hold, rearms
// the existing row with the new checkout session. Held or terminal rows
// are never touched; hitting one surfaces as a conflict.
func (r *TransactionRepo) UpsertCheckout(ctx context.Context, t *models.Transaction) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO transactions (request_id, session_id, amount, platform_fee, status)
		VALUES ($1, $2, $3, $4, 'pending')
		ON CONFLICT (request_id) DO UPDATE SET
			session_id = EXCLUDED.session_id,
			status = 'pending',
			updated_at = now()
		WHERE transactions.status IN ('pending', 'failed')
		RETURNING id, status, created_at, updated_at
	`, t.RequestID, t.SessionID, t.Amount, t.PlatformFee,
	).Scan(&t.ID, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.ErrConflict
	}
	return err
}

const txColumns = `id, request_id, session_id, hold_ref, amount, platform_fee, status, held_at, released_at, refunded_at, created_at, updated_at`

func (r *TransactionRepo) GetByRequestID(ctx context.Context, requestID uuid.UUID) (*models.Transaction, error) {
	var t models.Transaction
	err := r.pool.QueryRow(ctx, `
		SELECT `+txColumns+` FROM transactions WHERE request_id = $1
	`, requestID).Scan(&t.ID, &t.RequestID, &t.SessionID, &t.HoldRef, &t.Amount, &t.PlatformFee, &t.Status,
		&t.HeldAt, &t.ReleasedAt, &t.RefundedAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, mapScanErr(err)
	}
	return &t, nil
}

// SeenEvent reports whether a processor event id was fully processed. Ids
// are recorded only after processing succeeds, so a crashed delivery stays
// unseen and the processor's redelivery of the same id is handled again.
func (r *TransactionRepo) SeenEvent(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM payment_events WHERE event_id = $1)
	`, eventID).Scan(&exists)
	return exists, err
}

// RecordEvent retires a processor event id after its effects are durable.
// Concurrent deliveries of the same id race here; the loser's unique-key
// hit comes back as already-seen.
func (r *TransactionRepo) RecordEvent(ctx context.Context, eventID, eventType string, requestID uuid.UUID) (seen bool, err error) {
	_, err = r.pool.Exec(ctx, `
		INSERT INTO payment_events (event_id, event_type, request_id) VALUES ($1, $2, $3)
	`, eventID, eventType, requestID)
	if err != nil {
		if isUniqueViolation(err) {
			return true, nil
		}
		return false, err
	}
	return false, nil
}

// MarkHeld moves pending -> held and pins the processor hold reference.
// A zero-row update means the transaction was not awaiting a hold (stale
// or out-of-order event) and the caller must treat it as a no-op.
func (r *TransactionRepo) MarkHeld(ctx context.Context, requestID uuid.UUID, holdRef string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE transactions SET status = 'held', hold_ref = $2, held_at = now(), updated_at = now()
		WHERE request_id = $1 AND status = 'pending'
	`, requestID, holdRef)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkFailed moves pending -> failed; the sender may start a new checkout.
func (r *TransactionRepo) MarkFailed(ctx context.Context, requestID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE transactions SET status = 'failed', updated_at = now()
		WHERE request_id = $1 AND status = 'pending'
	`, requestID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkReleased moves held -> released exactly once.
func (r *TransactionRepo) MarkReleased(ctx context.Context, requestID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE transactions SET status = 'released', released_at = now(), updated_at = now()
		WHERE request_id = $1 AND status = 'held'
	`, requestID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkRefunded moves held -> refunded exactly once.
func (r *TransactionRepo) MarkRefunded(ctx context.Context, requestID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE transactions SET status = 'refunded', refunded_at = now(), updated_at = now()
		WHERE request_id = $1 AND status = 'held'
	`, requestID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
