package repositories

import (
	"context"

	"github.com/carrymarket/backend/internal/apperr"
	"github.com/carrymarket/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type DisputeRepo struct {
	pool *pgxpool.Pool
}

func NewDisputeRepo(pool *pgxpool.Pool) *DisputeRepo {
	return &DisputeRepo{pool: pool}
}

// Create opens a dispute. The partial unique index on (request_id)
// WHERE status = 'open' turns a double-open race into Conflict.
func (r *DisputeRepo) Create(ctx context.Context, d *models.Dispute) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO disputes (request_id, opener_id, reason, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, d.RequestID, d.OpenerID, d.Reason, d.Status,
	).Scan(&d.ID, &d.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.ErrConflict
		}
		return err
	}
	return nil
}

const disputeColumns = `id, request_id, opener_id, reason, status, resolved_by, resolved_at, created_at`

func (r *DisputeRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	var d models.Dispute
	err := r.pool.QueryRow(ctx, `
		SELECT `+disputeColumns+` FROM disputes WHERE id = $1
	`, id).Scan(&d.ID, &d.RequestID, &d.OpenerID, &d.Reason, &d.Status, &d.ResolvedBy, &d.ResolvedAt, &d.CreatedAt)
	if err != nil {
		return nil, mapScanErr(err)
	}
	return &d, nil
}

func (r *DisputeRepo) GetOpenByRequest(ctx context.Context, requestID uuid.UUID) (*models.Dispute, error) {
	var d models.Dispute
	err := r.pool.QueryRow(ctx, `
		SELECT `+disputeColumns+` FROM disputes WHERE request_id = $1 AND status = 'open'
	`, requestID).Scan(&d.ID, &d.RequestID, &d.OpenerID, &d.Reason, &d.Status, &d.ResolvedBy, &d.ResolvedAt, &d.CreatedAt)
	if err != nil {
		return nil, mapScanErr(err)
	}
	return &d, nil
}

// Resolve closes an open dispute exactly once; a second ruling attempt
// finds no open row and returns InvalidState.
func (r *DisputeRepo) Resolve(ctx context.Context, id uuid.UUID, status string, adminID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE disputes SET status = $2, resolved_by = $3, resolved_at = now()
		WHERE id = $1 AND status = 'open'
	`, id, status, adminID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrInvalidState
	}
	return nil
}

func (r *DisputeRepo) ListOpen(ctx context.Context, limit, offset int) ([]models.Dispute, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+disputeColumns+` FROM disputes WHERE status = 'open'
		ORDER BY created_at ASC LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var disputes []models.Dispute
	for rows.Next() {
		var d models.Dispute
		if err := rows.Scan(&d.ID, &d.RequestID, &d.OpenerID, &d.Reason, &d.Status, &d.ResolvedBy, &d.ResolvedAt, &d.CreatedAt); err != nil {
			return nil, err
		}
		disputes = append(disputes, d)
	}
	return disputes, nil
}
