package models

import (
	"time"

	"github.com/google/uuid"
)

// User roles
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID       uuid.UUID `json:"id"`
	Email    string    `json:"email"`
	FullName string    `json:"full_name"`
	Role     string    `json:"role"` // user / admin
	// Payout onboarding is handled by the payment processor; we only keep
	// the connected account reference and the latest readiness flag the
	// processor reported.
	PayoutAccountRef *string   `json:"payout_account_ref,omitempty"`
	PayoutsReady     bool      `json:"payouts_ready"`
	PasswordHash     string    `json:"-"`
	CreatedAt        time.Time `json:"created_at"`
	LastActiveAt     time.Time `json:"last_active_at"`
}
