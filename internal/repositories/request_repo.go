package repositories

import (
	"context"
	"fmt"

	"github.com/carrymarket/backend/internal/apperr"
	"github.com/carrymarket/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RequestRepo struct {
	pool *pgxpool.Pool
}

func NewRequestRepo(pool *pgxpool.Pool) *RequestRepo {
	return &RequestRepo{pool: pool}
}

func (r *RequestRepo) Create(ctx context.Context, req *models.Request) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO requests (offer_id, parcel_id, listing_id, sender_id, traveler_id, price, platform_fee, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`, req.OfferID, req.ParcelID, req.ListingID, req.SenderID, req.TravelerID, req.Price, req.PlatformFee, req.Status,
	).Scan(&req.ID, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.ErrConflict
		}
		return err
	}
	return nil
}

const requestColumns = `id, offer_id, parcel_id, listing_id, sender_id, traveler_id, price, platform_fee, status, confirmation_code_hash, created_at, updated_at`

func (r *RequestRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Request, error) {
	var req models.Request
	err := r.pool.QueryRow(ctx, `
		SELECT `+requestColumns+` FROM requests WHERE id = $1
	`, id).Scan(&req.ID, &req.OfferID, &req.ParcelID, &req.ListingID, &req.SenderID, &req.TravelerID,
		&req.Price, &req.PlatformFee, &req.Status, &req.ConfirmationCodeHash, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return nil, mapScanErr(err)
	}
	return &req, nil
}

// TransitionStatus is the CAS at the heart of the lifecycle: the row moves
// only if it is still in the expected prior status. A zero-row update means
// a concurrent caller won the race; the caller re-fetches and decides.
func (r *RequestRepo) TransitionStatus(ctx context.Context, id uuid.UUID, from, to string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE requests SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2
	`, id, from, to)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrConflict
	}
	return nil
}

// TransitionToPaidHeld atomically moves pending_payment -> paid_held and
// stores the confirmation code hash in the same statement so no state
// exists where funds are held but the delivery gate is missing.
func (r *RequestRepo) TransitionToPaidHeld(ctx context.Context, id uuid.UUID, codeHash string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE requests SET status = 'paid_held', confirmation_code_hash = $2, updated_at = now()
		WHERE id = $1 AND status = 'pending_payment'
	`, id, codeHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrConflict
	}
	return nil
}

type RequestFilter struct {
	SenderID      *uuid.UUID
	TravelerID    *uuid.UUID
	ParticipantID *uuid.UUID
	Status        *string
	Limit         int
	Offset        int
}

func (r *RequestRepo) List(ctx context.Context, f RequestFilter) ([]models.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests`
	args := []any{}
	argIdx := 1
	where := []string{}

	if f.SenderID != nil {
		where = append(where, fmt.Sprintf("sender_id = $%d", argIdx))
		args = append(args, *f.SenderID)
		argIdx++
	}
	if f.TravelerID != nil {
		where = append(where, fmt.Sprintf("traveler_id = $%d", argIdx))
		args = append(args, *f.TravelerID)
		argIdx++
	}
	if f.ParticipantID != nil {
		where = append(where, fmt.Sprintf("(sender_id = $%d OR traveler_id = $%d)", argIdx, argIdx))
		args = append(args, *f.ParticipantID)
		argIdx++
	}
	if f.Status != nil {
		where = append(where, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *f.Status)
		argIdx++
	}

	if len(where) > 0 {
		query += " WHERE "
		for i, w := range where {
			if i > 0 {
				query += " AND "
			}
			query += w
		}
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []models.Request
	for rows.Next() {
		var req models.Request
		if err := rows.Scan(&req.ID, &req.OfferID, &req.ParcelID, &req.ListingID, &req.SenderID, &req.TravelerID,
			&req.Price, &req.PlatformFee, &req.Status, &req.ConfirmationCodeHash, &req.CreatedAt, &req.UpdatedAt); err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, nil
}

// ListTimedOutPendingPayment returns requests whose checkout window lapsed,
// for the worker sweep that cancels them and returns capacity.
func (r *RequestRepo) ListTimedOutPendingPayment(ctx context.Context, olderThanSeconds int) ([]models.Request, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+requestColumns+` FROM requests
		WHERE status = 'pending_payment' AND created_at < now() - ($1 || ' seconds')::interval
	`, fmt.Sprintf("%d", olderThanSeconds))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []models.Request
	for rows.Next() {
		var req models.Request
		if err := rows.Scan(&req.ID, &req.OfferID, &req.ParcelID, &req.ListingID, &req.SenderID, &req.TravelerID,
			&req.Price, &req.PlatformFee, &req.Status, &req.ConfirmationCodeHash, &req.CreatedAt, &req.UpdatedAt); err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, nil
}

// ListCompletedWithHeldFunds returns completed requests whose transaction is
// still in held: the release failed at confirmation time and needs a retry.
func (r *RequestRepo) ListCompletedWithHeldFunds(ctx context.Context) ([]models.Request, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT r.id, r.offer_id, r.parcel_id, r.listing_id, r.sender_id, r.traveler_id,
		       r.price, r.platform_fee, r.status, r.confirmation_code_hash, r.created_at, r.updated_at
		FROM requests r
		JOIN transactions t ON t.request_id = r.id
		WHERE r.status = 'completed' AND t.status = 'held'
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []models.Request
	for rows.Next() {
		var req models.Request
		if err := rows.Scan(&req.ID, &req.OfferID, &req.ParcelID, &req.ListingID, &req.SenderID, &req.TravelerID,
			&req.Price, &req.PlatformFee, &req.Status, &req.ConfirmationCodeHash, &req.CreatedAt, &req.UpdatedAt); err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, nil
}
