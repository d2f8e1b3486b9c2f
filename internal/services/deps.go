package services

import (
	"context"

	"github.com/carrymarket/backend/internal/models"
	"github.com/carrymarket/backend/internal/repositories"
	"github.com/google/uuid"
)

// Store interfaces are the slice of the repository layer each service
// consumes. Tests substitute in-memory fakes.

type ListingStore interface {
	Create(ctx context.Context, l *models.Listing) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	Reserve(ctx context.Context, id uuid.UUID, weightGrams int) error
	Release(ctx context.Context, id uuid.UUID, weightGrams int) error
	UpdateStatus(ctx context.Context, id uuid.UUID, from []string, to string) error
	List(ctx context.Context, f repositories.ListingFilter) ([]models.Listing, error)
	ExpirePast(ctx context.Context) ([]uuid.UUID, error)
}

type ParcelStore interface {
	Create(ctx context.Context, p *models.Parcel) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Parcel, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from []string, to string) error
	List(ctx context.Context, f repositories.ParcelFilter) ([]models.Parcel, error)
}

type OfferStore interface {
	Create(ctx context.Context, o *models.Offer) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Offer, error)
	GetActiveByParcel(ctx context.Context, parcelID uuid.UUID) (*models.Offer, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) error
	RejectOtherPending(ctx context.Context, parcelID, exceptID uuid.UUID) ([]models.OfferWithParcel, error)
	ListPendingByListing(ctx context.Context, listingID uuid.UUID) ([]models.OfferWithParcel, error)
	ListExpiredPending(ctx context.Context, olderThanSeconds int) ([]models.OfferWithParcel, error)
	List(ctx context.Context, f repositories.OfferFilter) ([]models.Offer, error)
}

type RequestStore interface {
	Create(ctx context.Context, req *models.Request) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Request, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to string) error
	TransitionToPaidHeld(ctx context.Context, id uuid.UUID, codeHash string) error
	List(ctx context.Context, f repositories.RequestFilter) ([]models.Request, error)
	ListTimedOutPendingPayment(ctx context.Context, olderThanSeconds int) ([]models.Request, error)
}

type TransactionStore interface {
	UpsertCheckout(ctx context.Context, t *models.Transaction) error
	GetByRequestID(ctx context.Context, requestID uuid.UUID) (*models.Transaction, error)
	SeenEvent(ctx context.Context, eventID string) (bool, error)
	RecordEvent(ctx context.Context, eventID, eventType string, requestID uuid.UUID) (bool, error)
	MarkHeld(ctx context.Context, requestID uuid.UUID, holdRef string) (bool, error)
	MarkFailed(ctx context.Context, requestID uuid.UUID) (bool, error)
	MarkReleased(ctx context.Context, requestID uuid.UUID) (bool, error)
	MarkRefunded(ctx context.Context, requestID uuid.UUID) (bool, error)
}

type DisputeStore interface {
	Create(ctx context.Context, d *models.Dispute) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error)
	GetOpenByRequest(ctx context.Context, requestID uuid.UUID) (*models.Dispute, error)
	Resolve(ctx context.Context, id uuid.UUID, status string, adminID uuid.UUID) error
	ListOpen(ctx context.Context, limit, offset int) ([]models.Dispute, error)
}

type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	SetPayoutAccount(ctx context.Context, id uuid.UUID, accountRef string) error
	SetPayoutsReady(ctx context.Context, accountRef string, ready bool) error
}

type AuditStore interface {
	Log(ctx context.Context, entry models.AuditLog) error
	GetByEntity(ctx context.Context, entityType string, entityID uuid.UUID, limit, offset int) ([]models.AuditLog, error)
}
