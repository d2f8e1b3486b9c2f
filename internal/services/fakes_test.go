package services

import (
	"context"
	"fmt"

	"github.com/carrymarket/backend/internal/apperr"
	"github.com/carrymarket/backend/internal/events"
	"github.com/carrymarket/backend/internal/models"
	"github.com/carrymarket/backend/internal/repositories"
	"github.com/google/uuid"
)

// In-memory fakes mirroring the conditional-update semantics of the real
// repositories: status changes only apply when the row is in the expected
// prior state.

type fakeListingStore struct {
	listings map[uuid.UUID]*models.Listing
}

func newFakeListingStore() *fakeListingStore {
	return &fakeListingStore{listings: make(map[uuid.UUID]*models.Listing)}
}

func (f *fakeListingStore) add(l *models.Listing) *models.Listing {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	f.listings[l.ID] = l
	return l
}

func (f *fakeListingStore) Create(ctx context.Context, l *models.Listing) error {
	f.add(l)
	return nil
}

func (f *fakeListingStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	l, ok := f.listings[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (f *fakeListingStore) Reserve(ctx context.Context, id uuid.UUID, weightGrams int) error {
	l, ok := f.listings[id]
	if !ok || l.Status != models.ListingStatusActive || l.WeightAvailableGrams < weightGrams {
		return apperr.ErrInsufficientCapacity
	}
	l.WeightAvailableGrams -= weightGrams
	if l.WeightAvailableGrams == 0 {
		l.Status = models.ListingStatusFull
	}
	return nil
}

func (f *fakeListingStore) Release(ctx context.Context, id uuid.UUID, weightGrams int) error {
	l, ok := f.listings[id]
	if !ok {
		return apperr.ErrNotFound
	}
	l.WeightAvailableGrams += weightGrams
	if l.WeightAvailableGrams > l.WeightTotalGrams {
		l.WeightAvailableGrams = l.WeightTotalGrams
	}
	if l.Status == models.ListingStatusFull {
		l.Status = models.ListingStatusActive
	}
	return nil
}

func (f *fakeListingStore) UpdateStatus(ctx context.Context, id uuid.UUID, from []string, to string) error {
	l, ok := f.listings[id]
	if !ok {
		return apperr.ErrNotFound
	}
	for _, s := range from {
		if l.Status == s {
			l.Status = to
			return nil
		}
	}
	return apperr.ErrConflict
}

func (f *fakeListingStore) List(ctx context.Context, filter repositories.ListingFilter) ([]models.Listing, error) {
	var out []models.Listing
	for _, l := range f.listings {
		out = append(out, *l)
	}
	return out, nil
}

func (f *fakeListingStore) ExpirePast(ctx context.Context) ([]uuid.UUID, error) {
	return nil, nil
}

type fakeParcelStore struct {
	parcels map[uuid.UUID]*models.Parcel
}

func newFakeParcelStore() *fakeParcelStore {
	return &fakeParcelStore{parcels: make(map[uuid.UUID]*models.Parcel)}
}

func (f *fakeParcelStore) add(p *models.Parcel) *models.Parcel {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	f.parcels[p.ID] = p
	return p
}

func (f *fakeParcelStore) Create(ctx context.Context, p *models.Parcel) error {
	f.add(p)
	return nil
}

func (f *fakeParcelStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Parcel, error) {
	p, ok := f.parcels[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeParcelStore) UpdateStatus(ctx context.Context, id uuid.UUID, from []string, to string) error {
	p, ok := f.parcels[id]
	if !ok {
		return apperr.ErrNotFound
	}
	for _, s := range from {
		if p.Status == s {
			p.Status = to
			return nil
		}
	}
	return apperr.ErrConflict
}

func (f *fakeParcelStore) List(ctx context.Context, filter repositories.ParcelFilter) ([]models.Parcel, error) {
	var out []models.Parcel
	for _, p := range f.parcels {
		out = append(out, *p)
	}
	return out, nil
}

type fakeOfferStore struct {
	offers map[uuid.UUID]*models.Offer
}

func newFakeOfferStore() *fakeOfferStore {
	return &fakeOfferStore{offers: make(map[uuid.UUID]*models.Offer)}
}

func (f *fakeOfferStore) add(o *models.Offer) *models.Offer {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.Status == "" {
		o.Status = models.OfferStatusPending
	}
	f.offers[o.ID] = o
	return o
}

func (f *fakeOfferStore) Create(ctx context.Context, o *models.Offer) error {
	for _, other := range f.offers {
		if other.ParcelID == o.ParcelID &&
			(other.Status == models.OfferStatusPending || other.Status == models.OfferStatusAccepted) {
			return apperr.ErrConflict
		}
	}
	o.Status = models.OfferStatusPending
	f.add(o)
	return nil
}

func (f *fakeOfferStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Offer, error) {
	o, ok := f.offers[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeOfferStore) GetActiveByParcel(ctx context.Context, parcelID uuid.UUID) (*models.Offer, error) {
	for _, o := range f.offers {
		if o.ParcelID == parcelID &&
			(o.Status == models.OfferStatusPending || o.Status == models.OfferStatusAccepted) {
			cp := *o
			return &cp, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (f *fakeOfferStore) UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) error {
	o, ok := f.offers[id]
	if !ok {
		return apperr.ErrNotFound
	}
	if o.Status != from {
		return apperr.ErrConflict
	}
	o.Status = to
	return nil
}

func (f *fakeOfferStore) RejectOtherPending(ctx context.Context, parcelID, exceptID uuid.UUID) ([]models.OfferWithParcel, error) {
	var rejected []models.OfferWithParcel
	for _, o := range f.offers {
		if o.ParcelID == parcelID && o.ID != exceptID && o.Status == models.OfferStatusPending {
			o.Status = models.OfferStatusRejected
			rejected = append(rejected, models.OfferWithParcel{Offer: *o})
		}
	}
	return rejected, nil
}

func (f *fakeOfferStore) ListPendingByListing(ctx context.Context, listingID uuid.UUID) ([]models.OfferWithParcel, error) {
	var out []models.OfferWithParcel
	for _, o := range f.offers {
		if o.ListingID == listingID && o.Status == models.OfferStatusPending {
			out = append(out, models.OfferWithParcel{Offer: *o})
		}
	}
	return out, nil
}

func (f *fakeOfferStore) ListExpiredPending(ctx context.Context, olderThanSeconds int) ([]models.OfferWithParcel, error) {
	return nil, nil
}

func (f *fakeOfferStore) List(ctx context.Context, filter repositories.OfferFilter) ([]models.Offer, error) {
	var out []models.Offer
	for _, o := range f.offers {
		out = append(out, *o)
	}
	return out, nil
}

type fakeRequestStore struct {
	requests map[uuid.UUID]*models.Request
}

func newFakeRequestStore() *fakeRequestStore {
	return &fakeRequestStore{requests: make(map[uuid.UUID]*models.Request)}
}

func (f *fakeRequestStore) add(r *models.Request) *models.Request {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	f.requests[r.ID] = r
	return r
}

func (f *fakeRequestStore) Create(ctx context.Context, req *models.Request) error {
	for _, other := range f.requests {
		if other.OfferID == req.OfferID {
			return apperr.ErrConflict
		}
	}
	f.add(req)
	return nil
}

func (f *fakeRequestStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Request, error) {
	r, ok := f.requests[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeRequestStore) TransitionStatus(ctx context.Context, id uuid.UUID, from, to string) error {
	r, ok := f.requests[id]
	if !ok {
		return apperr.ErrNotFound
	}
	if r.Status != from {
		return apperr.ErrConflict
	}
	r.Status = to
	return nil
}

func (f *fakeRequestStore) TransitionToPaidHeld(ctx context.Context, id uuid.UUID, codeHash string) error {
	r, ok := f.requests[id]
	if !ok {
		return apperr.ErrNotFound
	}
	if r.Status != models.RequestStatusPendingPayment {
		return apperr.ErrConflict
	}
	r.Status = models.RequestStatusPaidHeld
	r.ConfirmationCodeHash = &codeHash
	return nil
}

func (f *fakeRequestStore) List(ctx context.Context, filter repositories.RequestFilter) ([]models.Request, error) {
	var out []models.Request
	for _, r := range f.requests {
		out = append(out, *r)
	}
	return out, nil
}

func (f *fakeRequestStore) ListTimedOutPendingPayment(ctx context.Context, olderThanSeconds int) ([]models.Request, error) {
	var out []models.Request
	for _, r := range f.requests {
		if r.Status == models.RequestStatusPendingPayment {
			out = append(out, *r)
		}
	}
	return out, nil
}

type fakeTransactionStore struct {
	txs    map[uuid.UUID]*models.Transaction // by request id
	events map[string]bool
}

func newFakeTransactionStore() *fakeTransactionStore {
	return &fakeTransactionStore{
		txs:    make(map[uuid.UUID]*models.Transaction),
		events: make(map[string]bool),
	}
}

func (f *fakeTransactionStore) UpsertCheckout(ctx context.Context, t *models.Transaction) error {
	existing, ok := f.txs[t.RequestID]
	if ok && existing.Status != models.TxStatusPending && existing.Status != models.TxStatusFailed {
		return apperr.ErrConflict
	}
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	cp := *t
	cp.Status = models.TxStatusPending
	f.txs[t.RequestID] = &cp
	return nil
}

func (f *fakeTransactionStore) GetByRequestID(ctx context.Context, requestID uuid.UUID) (*models.Transaction, error) {
	t, ok := f.txs[requestID]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTransactionStore) SeenEvent(ctx context.Context, eventID string) (bool, error) {
	return f.events[eventID], nil
}

func (f *fakeTransactionStore) RecordEvent(ctx context.Context, eventID, eventType string, requestID uuid.UUID) (bool, error) {
	if f.events[eventID] {
		return true, nil
	}
	f.events[eventID] = true
	return false, nil
}

func (f *fakeTransactionStore) markFrom(requestID uuid.UUID, from, to string, holdRef *string) (bool, error) {
	t, ok := f.txs[requestID]
	if !ok {
		return false, apperr.ErrNotFound
	}
	if t.Status != from {
		return false, nil
	}
	t.Status = to
	if holdRef != nil {
		t.HoldRef = holdRef
	}
	return true, nil
}

func (f *fakeTransactionStore) MarkHeld(ctx context.Context, requestID uuid.UUID, holdRef string) (bool, error) {
	return f.markFrom(requestID, models.TxStatusPending, models.TxStatusHeld, &holdRef)
}

func (f *fakeTransactionStore) MarkFailed(ctx context.Context, requestID uuid.UUID) (bool, error) {
	return f.markFrom(requestID, models.TxStatusPending, models.TxStatusFailed, nil)
}

func (f *fakeTransactionStore) MarkReleased(ctx context.Context, requestID uuid.UUID) (bool, error) {
	return f.markFrom(requestID, models.TxStatusHeld, models.TxStatusReleased, nil)
}

func (f *fakeTransactionStore) MarkRefunded(ctx context.Context, requestID uuid.UUID) (bool, error) {
	return f.markFrom(requestID, models.TxStatusHeld, models.TxStatusRefunded, nil)
}

type fakeDisputeStore struct {
	disputes map[uuid.UUID]*models.Dispute
}

func newFakeDisputeStore() *fakeDisputeStore {
	return &fakeDisputeStore{disputes: make(map[uuid.UUID]*models.Dispute)}
}

func (f *fakeDisputeStore) Create(ctx context.Context, d *models.Dispute) error {
	for _, other := range f.disputes {
		if other.RequestID == d.RequestID && other.Status == models.DisputeStatusOpen {
			return apperr.ErrConflict
		}
	}
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	d.Status = models.DisputeStatusOpen
	f.disputes[d.ID] = d
	return nil
}

func (f *fakeDisputeStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	d, ok := f.disputes[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (f *fakeDisputeStore) GetOpenByRequest(ctx context.Context, requestID uuid.UUID) (*models.Dispute, error) {
	for _, d := range f.disputes {
		if d.RequestID == requestID && d.Status == models.DisputeStatusOpen {
			cp := *d
			return &cp, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (f *fakeDisputeStore) Resolve(ctx context.Context, id uuid.UUID, status string, adminID uuid.UUID) error {
	d, ok := f.disputes[id]
	if !ok {
		return apperr.ErrNotFound
	}
	if d.Status != models.DisputeStatusOpen {
		return apperr.ErrInvalidState
	}
	d.Status = status
	d.ResolvedBy = &adminID
	return nil
}

func (f *fakeDisputeStore) ListOpen(ctx context.Context, limit, offset int) ([]models.Dispute, error) {
	var out []models.Dispute
	for _, d := range f.disputes {
		if d.Status == models.DisputeStatusOpen {
			out = append(out, *d)
		}
	}
	return out, nil
}

type fakeUserStore struct {
	users map[uuid.UUID]*models.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[uuid.UUID]*models.User)}
}

func (f *fakeUserStore) add(u *models.User) *models.User {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	f.users[u.ID] = u
	return u
}

func (f *fakeUserStore) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUserStore) SetPayoutAccount(ctx context.Context, id uuid.UUID, accountRef string) error {
	u, ok := f.users[id]
	if !ok {
		return apperr.ErrNotFound
	}
	if u.PayoutAccountRef == nil {
		u.PayoutAccountRef = &accountRef
	}
	return nil
}

func (f *fakeUserStore) SetPayoutsReady(ctx context.Context, accountRef string, ready bool) error {
	for _, u := range f.users {
		if u.PayoutAccountRef != nil && *u.PayoutAccountRef == accountRef {
			u.PayoutsReady = ready
		}
	}
	return nil
}

type fakeAuditStore struct {
	actions []string
	entries []models.AuditLog
}

func (f *fakeAuditStore) Log(ctx context.Context, entry models.AuditLog) error {
	f.actions = append(f.actions, entry.Action)
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeAuditStore) GetByEntity(ctx context.Context, entityType string, entityID uuid.UUID, limit, offset int) ([]models.AuditLog, error) {
	var out []models.AuditLog
	for _, e := range f.entries {
		if e.EntityType == entityType && e.EntityID != nil && *e.EntityID == entityID {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakePublisher struct {
	published []events.Event
}

func (f *fakePublisher) Publish(ctx context.Context, stream string, event events.Event) error {
	f.published = append(f.published, event)
	return nil
}

func (f *fakePublisher) byType(t string) []events.Event {
	var out []events.Event
	for _, e := range f.published {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// fakeProcessor scripts the external payment provider.
type fakeProcessor struct {
	captureErr  error
	refundErr   error
	captured    []string
	refunded    []string
	holdsOpened int
}

func (f *fakeProcessor) OpenHold(ctx context.Context, p OpenHoldParams) (*CheckoutSession, error) {
	f.holdsOpened++
	return &CheckoutSession{
		SessionID:   fmt.Sprintf("sess_%d", f.holdsOpened),
		CheckoutURL: "https://processor.example/checkout",
	}, nil
}

func (f *fakeProcessor) Capture(ctx context.Context, holdRef, payoutAccountRef string) error {
	if f.captureErr != nil {
		return f.captureErr
	}
	f.captured = append(f.captured, holdRef)
	return nil
}

func (f *fakeProcessor) Refund(ctx context.Context, holdRef string) error {
	if f.refundErr != nil {
		return f.refundErr
	}
	f.refunded = append(f.refunded, holdRef)
	return nil
}

func (f *fakeProcessor) CreateOnboardingLink(ctx context.Context, userID uuid.UUID, email string) (*OnboardingLink, error) {
	return &OnboardingLink{AccountRef: "acct_" + userID.String()[:8], OnboardingURL: "https://processor.example/onboard"}, nil
}
