package repositories

import (
	"context"

	"github.com/carrymarket/backend/internal/apperr"
	"github.com/carrymarket/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

const userColumns = `id, email, full_name, role, payout_account_ref, payouts_ready, password_hash, created_at, last_active_at`

func (r *UserRepo) Create(ctx context.Context, u *models.User) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO users (email, full_name, role, password_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, last_active_at
	`, u.Email, u.FullName, u.Role, u.PasswordHash,
	).Scan(&u.ID, &u.CreatedAt, &u.LastActiveAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.ErrConflict
		}
		return err
	}
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	err := r.pool.QueryRow(ctx, `
		SELECT `+userColumns+` FROM users WHERE id = $1
	`, id).Scan(&u.ID, &u.Email, &u.FullName, &u.Role, &u.PayoutAccountRef, &u.PayoutsReady,
		&u.PasswordHash, &u.CreatedAt, &u.LastActiveAt)
	if err != nil {
		return nil, mapScanErr(err)
	}
	return &u, nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := r.pool.QueryRow(ctx, `
		SELECT `+userColumns+` FROM users WHERE email = $1
	`, email).Scan(&u.ID, &u.Email, &u.FullName, &u.Role, &u.PayoutAccountRef, &u.PayoutsReady,
		&u.PasswordHash, &u.CreatedAt, &u.LastActiveAt)
	if err != nil {
		return nil, mapScanErr(err)
	}
	return &u, nil
}

func (r *UserRepo) Touch(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET last_active_at = now() WHERE id = $1`, id)
	return err
}

// SetPayoutAccount pins the processor-side connected account reference the
// first time onboarding starts.
func (r *UserRepo) SetPayoutAccount(ctx context.Context, id uuid.UUID, accountRef string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE users SET payout_account_ref = $2 WHERE id = $1 AND payout_account_ref IS NULL
	`, id, accountRef)
	return err
}

// SetPayoutsReady records the readiness flag reported by the processor's
// account webhook.
func (r *UserRepo) SetPayoutsReady(ctx context.Context, accountRef string, ready bool) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE users SET payouts_ready = $2 WHERE payout_account_ref = $1
	`, accountRef, ready)
	return err
}
