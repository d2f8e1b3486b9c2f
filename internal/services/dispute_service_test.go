package services

import (
	"context"
	"testing"

	"github.com/carrymarket/backend/internal/apperr"
	"github.com/carrymarket/backend/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestOpenDispute(t *testing.T) {
	e := newTestEnv()
	ctx := context.Background()
	req, _ := e.seedActiveRequest(t, models.RequestStatusInTransit)

	dispute, err := e.disputeSvc.OpenDispute(ctx, req.SenderID, req.ID, "parcel damaged")
	require.NoError(t, err)
	require.Equal(t, models.DisputeStatusOpen, dispute.Status)

	got, _ := e.requests.GetByID(ctx, req.ID)
	require.Equal(t, models.RequestStatusDisputed, got.Status)
}

func TestOpenDisputeOutsiderForbidden(t *testing.T) {
	e := newTestEnv()
	ctx := context.Background()
	req, _ := e.seedActiveRequest(t, models.RequestStatusInTransit)

	_, err := e.disputeSvc.OpenDispute(ctx, uuid.New(), req.ID, "parcel damaged")
	require.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestOpenDisputeBeforePaymentRejected(t *testing.T) {
	e := newTestEnv()
	ctx := context.Background()
	req, _ := e.seedActiveRequest(t, models.RequestStatusPendingPayment)

	_, err := e.disputeSvc.OpenDispute(ctx, req.SenderID, req.ID, "cold feet")
	require.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestOpenDisputeOnCompletedRejected(t *testing.T) {
	e := newTestEnv()
	ctx := context.Background()
	req, _ := e.seedActiveRequest(t, models.RequestStatusCompleted)

	_, err := e.disputeSvc.OpenDispute(ctx, req.TravelerID, req.ID, "never paid")
	require.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestOpenDisputeSecondOpenConflicts(t *testing.T) {
	e := newTestEnv()
	ctx := context.Background()
	req, _ := e.seedActiveRequest(t, models.RequestStatusInTransit)

	_, err := e.disputeSvc.OpenDispute(ctx, req.SenderID, req.ID, "parcel damaged")
	require.NoError(t, err)

	// Request is already disputed; the second attempt fails on state.
	_, err = e.disputeSvc.OpenDispute(ctx, req.TravelerID, req.ID, "sender lying")
	require.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestResolveRefund(t *testing.T) {
	e := newTestEnv()
	ctx := context.Background()
	admin := uuid.New()
	req, _ := e.seedActiveRequest(t, models.RequestStatusInTransit)

	dispute, err := e.disputeSvc.OpenDispute(ctx, req.SenderID, req.ID, "parcel lost")
	require.NoError(t, err)

	resolved, err := e.disputeSvc.Resolve(ctx, admin, dispute.ID, models.RulingRefund)
	require.NoError(t, err)
	require.Equal(t, models.DisputeStatusResolvedRefund, resolved.Status)
	require.Equal(t, admin, *resolved.ResolvedBy)

	got, _ := e.requests.GetByID(ctx, req.ID)
	require.Equal(t, models.RequestStatusRefunded, got.Status)

	tx, _ := e.txs.GetByRequestID(ctx, req.ID)
	require.Equal(t, models.TxStatusRefunded, tx.Status)
	require.Len(t, e.proc.refunded, 1)
}

func TestResolveRelease(t *testing.T) {
	e := newTestEnv()
	ctx := context.Background()
	admin := uuid.New()
	req, _ := e.seedActiveRequest(t, models.RequestStatusDelivered)

	dispute, err := e.disputeSvc.OpenDispute(ctx, req.TravelerID, req.ID, "sender refuses to share code")
	require.NoError(t, err)

	resolved, err := e.disputeSvc.Resolve(ctx, admin, dispute.ID, models.RulingRelease)
	require.NoError(t, err)
	require.Equal(t, models.DisputeStatusResolvedRelease, resolved.Status)

	got, _ := e.requests.GetByID(ctx, req.ID)
	require.Equal(t, models.RequestStatusCompleted, got.Status)

	tx, _ := e.txs.GetByRequestID(ctx, req.ID)
	require.Equal(t, models.TxStatusReleased, tx.Status)

	parcel, _ := e.parcels.GetByID(ctx, req.ParcelID)
	require.Equal(t, models.ParcelStatusDelivered, parcel.Status)
}

func TestResolveUnknownRuling(t *testing.T) {
	e := newTestEnv()
	ctx := context.Background()
	req, _ := e.seedActiveRequest(t, models.RequestStatusInTransit)
	dispute, err := e.disputeSvc.OpenDispute(ctx, req.SenderID, req.ID, "parcel lost")
	require.NoError(t, err)

	_, err = e.disputeSvc.Resolve(ctx, uuid.New(), dispute.ID, "split")
	require.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestResolveTwiceRejected(t *testing.T) {
	e := newTestEnv()
	ctx := context.Background()
	admin := uuid.New()
	req, _ := e.seedActiveRequest(t, models.RequestStatusInTransit)
	dispute, err := e.disputeSvc.OpenDispute(ctx, req.SenderID, req.ID, "parcel lost")
	require.NoError(t, err)

	_, err = e.disputeSvc.Resolve(ctx, admin, dispute.ID, models.RulingRefund)
	require.NoError(t, err)

	_, err = e.disputeSvc.Resolve(ctx, admin, dispute.ID, models.RulingRelease)
	require.ErrorIs(t, err, apperr.ErrInvalidState)
	require.Empty(t, e.proc.captured)
}

func TestResolveKeepsDisputeOpenOnProcessorFailure(t *testing.T) {
	e := newTestEnv()
	ctx := context.Background()
	admin := uuid.New()
	req, _ := e.seedActiveRequest(t, models.RequestStatusInTransit)
	dispute, err := e.disputeSvc.OpenDispute(ctx, req.SenderID, req.ID, "parcel lost")
	require.NoError(t, err)

	e.proc.refundErr = apperr.ErrUpstreamPaymentFailure
	_, err = e.disputeSvc.Resolve(ctx, admin, dispute.ID, models.RulingRefund)
	require.ErrorIs(t, err, apperr.ErrUpstreamPaymentFailure)

	gotDispute, _ := e.disputes.GetByID(ctx, dispute.ID)
	require.Equal(t, models.DisputeStatusOpen, gotDispute.Status)
	gotReq, _ := e.requests.GetByID(ctx, req.ID)
	require.Equal(t, models.RequestStatusDisputed, gotReq.Status)

	// Retry after the processor recovers.
	e.proc.refundErr = nil
	_, err = e.disputeSvc.Resolve(ctx, admin, dispute.ID, models.RulingRefund)
	require.NoError(t, err)
}
