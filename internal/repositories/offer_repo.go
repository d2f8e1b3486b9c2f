package repositories

import (
	"context"
	"fmt"

	"github.com/carrymarket/backend/internal/apperr"
	"github.com/carrymarket/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type OfferRepo struct {
	pool *pgxpool.Pool
}

func NewOfferRepo(pool *pgxpool.Pool) *OfferRepo {
	return &OfferRepo{pool: pool}
}

// Create inserts a pending offer. The partial unique index on
// (parcel_id) WHERE status IN ('pending','accepted') makes the
// one-active-offer-per-parcel invariant hold even when two creates race;
// the loser surfaces as Conflict.
func (r *OfferRepo) Create(ctx context.Context, o *models.Offer) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO offers (parcel_id, listing_id, sender_id, price, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`, o.ParcelID, o.ListingID, o.SenderID, o.Price, o.Status,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.ErrConflict
		}
		return err
	}
	return nil
}

func (r *OfferRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Offer, error) {
	var o models.Offer
	err := r.pool.QueryRow(ctx, `
		SELECT id, parcel_id, listing_id, sender_id, price, status, created_at, updated_at
		FROM offers WHERE id = $1
	`, id).Scan(&o.ID, &o.ParcelID, &o.ListingID, &o.SenderID, &o.Price, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, mapScanErr(err)
	}
	return &o, nil
}

// GetActiveByParcel returns the parcel's pending or accepted offer, if any.
func (r *OfferRepo) GetActiveByParcel(ctx context.Context, parcelID uuid.UUID) (*models.Offer, error) {
	var o models.Offer
	err := r.pool.QueryRow(ctx, `
		SELECT id, parcel_id, listing_id, sender_id, price, status, created_at, updated_at
		FROM offers WHERE parcel_id = $1 AND status IN ('pending', 'accepted')
	`, parcelID).Scan(&o.ID, &o.ParcelID, &o.ListingID, &o.SenderID, &o.Price, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, mapScanErr(err)
	}
	return &o, nil
}

// UpdateStatus is the CAS guard for offer transitions: it succeeds only
// when the offer is still in the expected prior status.
func (r *OfferRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE offers SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2
	`, id, from, to)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrInvalidState
	}
	return nil
}

// RejectOtherPending rejects all pending offers for a parcel except the
// accepted one, returning them with parcel weight so the caller can hand
// their speculative reservations back to the capacity ledger.
func (r *OfferRepo) RejectOtherPending(ctx context.Context, parcelID, exceptID uuid.UUID) ([]models.OfferWithParcel, error) {
	rows, err := r.pool.Query(ctx, `
		UPDATE offers o SET status = 'rejected', updated_at = now()
		FROM parcels p
		WHERE o.parcel_id = p.id AND o.parcel_id = $1 AND o.id <> $2 AND o.status = 'pending'
		RETURNING o.id, o.parcel_id, o.listing_id, o.sender_id, o.price, o.status, o.created_at, o.updated_at, p.weight_grams
	`, parcelID, exceptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanOffersWithParcel(rows)
}

// ListPendingByListing returns pending offers against a listing, used when
// a traveler cancels a listing and every speculative hold must be undone.
func (r *OfferRepo) ListPendingByListing(ctx context.Context, listingID uuid.UUID) ([]models.OfferWithParcel, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT o.id, o.parcel_id, o.listing_id, o.sender_id, o.price, o.status, o.created_at, o.updated_at, p.weight_grams
		FROM offers o JOIN parcels p ON p.id = o.parcel_id
		WHERE o.listing_id = $1 AND o.status = 'pending'
	`, listingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanOffersWithParcel(rows)
}

// ListExpiredPending returns pending offers older than the expiry window
// for the worker sweep.
func (r *OfferRepo) ListExpiredPending(ctx context.Context, olderThanSeconds int) ([]models.OfferWithParcel, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT o.id, o.parcel_id, o.listing_id, o.sender_id, o.price, o.status, o.created_at, o.updated_at, p.weight_grams
		FROM offers o JOIN parcels p ON p.id = o.parcel_id
		WHERE o.status = 'pending' AND o.created_at < now() - ($1 || ' seconds')::interval
	`, fmt.Sprintf("%d", olderThanSeconds))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanOffersWithParcel(rows)
}

type OfferFilter struct {
	ParcelID  *uuid.UUID
	ListingID *uuid.UUID
	SenderID  *uuid.UUID
	Status    *string
	Limit     int
	Offset    int
}

func (r *OfferRepo) List(ctx context.Context, f OfferFilter) ([]models.Offer, error) {
	query := `
		SELECT id, parcel_id, listing_id, sender_id, price, status, created_at, updated_at
		FROM offers
	`
	args := []any{}
	argIdx := 1
	where := []string{}

	if f.ParcelID != nil {
		where = append(where, fmt.Sprintf("parcel_id = $%d", argIdx))
		args = append(args, *f.ParcelID)
		argIdx++
	}
	if f.ListingID != nil {
		where = append(where, fmt.Sprintf("listing_id = $%d", argIdx))
		args = append(args, *f.ListingID)
		argIdx++
	}
	if f.SenderID != nil {
		where = append(where, fmt.Sprintf("sender_id = $%d", argIdx))
		args = append(args, *f.SenderID)
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

	var offers []models.Offer
	for rows.Next() {
		var o models.Offer
		if err := rows.Scan(&o.ID, &o.ParcelID, &o.ListingID, &o.SenderID, &o.Price, &o.Status, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		offers = append(offers, o)
	}
	return offers, nil
}

type offerRows interface {
	Next() bool
	Scan(dest ...any) error
}

func scanOffersWithParcel(rows offerRows) ([]models.OfferWithParcel, error) {
	var offers []models.OfferWithParcel
	for rows.Next() {
		var o models.OfferWithParcel
		if err := rows.Scan(&o.ID, &o.ParcelID, &o.ListingID, &o.SenderID, &o.Price, &o.Status,
			&o.CreatedAt, &o.UpdatedAt, &o.ParcelWeightGrams); err != nil {
			return nil, err
		}
		offers = append(offers, o)
	}
	return offers, nil
}
