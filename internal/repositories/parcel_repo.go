package repositories

import (
	"context"
	"fmt"

	"github.com/carrymarket/backend/internal/apperr"
	"github.com/carrymarket/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ParcelRepo struct {
	pool *pgxpool.Pool
}

func NewParcelRepo(pool *pgxpool.Pool) *ParcelRepo {
	return &ParcelRepo{pool: pool}
}

func (r *ParcelRepo) Create(ctx context.Context, p *models.Parcel) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO parcels (sender_id, origin_city, destination_city, weight_grams, declared_value, description, photo_urls, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`, p.SenderID, p.OriginCity, p.DestinationCity, p.WeightGrams, p.DeclaredValue, p.Description, p.PhotoURLs, p.Status,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

func (r *ParcelRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Parcel, error) {
	var p models.Parcel
	err := r.pool.QueryRow(ctx, `
		SELECT id, sender_id, origin_city, destination_city, weight_grams, declared_value, description, photo_urls, status, created_at, updated_at
		FROM parcels WHERE id = $1
	`, id).Scan(&p.ID, &p.SenderID, &p.OriginCity, &p.DestinationCity, &p.WeightGrams, &p.DeclaredValue,
		&p.Description, &p.PhotoURLs, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, mapScanErr(err)
	}
	return &p, nil
}

// UpdateStatus transitions a parcel only from the expected prior statuses.
func (r *ParcelRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from []string, to string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE parcels SET status = $2, updated_at = now()
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

type ParcelFilter struct {
	SenderID        *uuid.UUID
	OriginCity      *string
	DestinationCity *string
	Status          *string
	Limit           int
	Offset          int
}

func (r *ParcelRepo) List(ctx context.Context, f ParcelFilter) ([]models.Parcel, error) {
	query := `
		SELECT id, sender_id, origin_city, destination_city, weight_grams, declared_value, description, photo_urls, status, created_at, updated_at
		FROM parcels
	`
	args := []any{}
	argIdx := 1
	where := []string{}

	if f.SenderID != nil {
		where = append(where, fmt.Sprintf("sender_id = $%d", argIdx))
		args = append(args, *f.SenderID)
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
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var parcels []models.Parcel
	for rows.Next() {
		var p models.Parcel
		if err := rows.Scan(&p.ID, &p.SenderID, &p.OriginCity, &p.DestinationCity, &p.WeightGrams, &p.DeclaredValue,
			&p.Description, &p.PhotoURLs, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		parcels = append(parcels, p)
	}
	return parcels, nil
}
