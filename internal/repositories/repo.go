package repositories

import (
	"errors"

	"github.com/carrymarket/backend/internal/apperr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// mapScanErr converts pgx row-scan errors to the shared taxonomy.
func mapScanErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.ErrNotFound
	}
	return err
}

// isUniqueViolation reports a lost uniqueness race (duplicate active
// entity), which surfaces as Conflict.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
