package repositories

import (
	"context"
	"fmt"

	"github.com/carrymarket/backend/internal/apperr"
	"github.com/carrymarket/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ListingRepo struct {
	pool *pgxpool.Pool
}

func NewListingRepo(pool *pgxpool.Pool) *ListingRepo {
	return &ListingRepo{pool: pool}
}

func (r *ListingRepo) Create(ctx context.Context, l *models.Listing) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO listings (traveler_id, origin_city, destination_city, depart_after, depart_before,
		                      weight_total_grams, weight_available_grams, price_per_kg, status)
		VALUES ($1, $2, $3, $4, $5, $6, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`, l.TravelerID, l.OriginCity, l.DestinationCity, l.DepartAfter, l.DepartBefore,
		l.WeightTotalGrams, l.PricePerKG, l.Status,
	).Scan(&l.ID, &l.CreatedAt, &l.UpdatedAt)
}

func (r *ListingRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	var l models.Listing
	err := r.pool.QueryRow(ctx, `
		SELECT id, traveler_id, origin_city, destination_city, depart_after, depart_before,
		       weight_total_grams, weight_available_grams, price_per_kg, status, created_at, updated_at
		FROM listings WHERE id = $1
	`, id).Scan(&l.ID, &l.TravelerID, &l.OriginCity, &l.DestinationCity, &l.DepartAfter, &l.DepartBefore,
		&l.WeightTotalGrams, &l.WeightAvailableGrams, &l.PricePerKG, &l.Status, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, mapScanErr(err)
	}
	return &l, nil
}

// Reserve commits weight against a listing's remaining capacity. The
// decrement is a single conditional UPDATE so concurrent offers on a
// near-full listing cannot overcommit; a listing that reaches zero flips
// to full in the same statement.
func (r *ListingRepo) Reserve(ctx context.Context, id uuid.UUID, weightGrams int) error {
	if weightGrams <= 0 {
		return fmt.Errorf("reserve: weight must be positive, got %d", weightGrams)
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE listings
		SET weight_available_grams = weight_available_grams - $2,
		    status = CASE WHEN weight_available_grams - $2 = 0 THEN 'full' ELSE status END,
		    updated_at = now()
		WHERE id = $1 AND status = 'active' AND weight_available_grams >= $2
	`, id, weightGrams)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrInsufficientCapacity
	}
	return nil
}

// Release returns previously reserved weight. A full listing goes back to
// active; cancelled and expired listings keep their status but still get
// the weight back so accounting stays consistent.
func (r *ListingRepo) Release(ctx context.Context, id uuid.UUID, weightGrams int) error {
	if weightGrams <= 0 {
		return fmt.Errorf("release: weight must be positive, got %d", weightGrams)
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE listings
		SET weight_available_grams = LEAST(weight_available_grams + $2, weight_total_grams),
		    status = CASE WHEN status = 'full' THEN 'active' ELSE status END,
		    updated_at = now()
		WHERE id = $1
	`, id, weightGrams)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// UpdateStatus moves a listing between statuses only from the allowed set,
// returning Conflict when a concurrent update got there first.
func (r *ListingRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from []string, to string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE listings SET status = $2, updated_at = now()
		WHERE id = $1 AND status = ANY($3)
	`, id, to, from)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrInvalidState
	}
	return nil
}

type ListingFilter struct {
	TravelerID      *uuid.UUID
	OriginCity      *string
	DestinationCity *string
	Status          *string
	Limit           int
	Offset          int
}

func (r *ListingRepo) List(ctx context.Context, f ListingFilter) ([]models.Listing, error) {
	query := `
		SELECT id, traveler_id, origin_city, destination_city, depart_after, depart_before,
		       weight_total_grams, weight_available_grams, price_per_kg, status, created_at, updated_at
		FROM listings
	`
	args := []any{}
	argIdx := 1
	where := []string{}

	if f.TravelerID != nil {
		where = append(where, fmt.Sprintf("traveler_id = $%d", argIdx))
		args = append(args, *f.TravelerID)
		argIdx++
	}
	if f.OriginCity != nil {
		where = append(where, fmt.Sprintf("origin_city = $%d", argIdx))
		args = append(args, *f.OriginCity)
		argIdx++
	}
	if f.DestinationCity != nil {
		where = append(where, fmt.Sprintf("destination_city = $%d", argIdx))
		args = append(args, *f.DestinationCity)
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
	query += fmt.Sprintf(" ORDER BY depart_after ASC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listings []models.Listing
	for rows.Next() {
		var l models.Listing
		if err := rows.Scan(&l.ID, &l.TravelerID, &l.OriginCity, &l.DestinationCity, &l.DepartAfter, &l.DepartBefore,
			&l.WeightTotalGrams, &l.WeightAvailableGrams, &l.PricePerKG, &l.Status, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		listings = append(listings, l)
	}
	return listings, nil
}

// ExpirePast marks active/full listings whose travel window has closed.
// Returns the ids so the worker can expire their pending offers too.
func (r *ListingRepo) ExpirePast(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		UPDATE listings SET status = 'expired', updated_at = now()
		WHERE status IN ('active', 'full') AND depart_before < now()
		RETURNING id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
