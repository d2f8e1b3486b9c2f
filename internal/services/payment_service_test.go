package services

import (
	"context"
	"testing"

	"github.com/carrymarket/backend/internal/apperr"
	"github.com/carrymarket/backend/internal/events"
	"github.com/carrymarket/backend/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func (e *testEnv) seedRequest(status string) *models.Request {
	return e.requests.add(&models.Request{
		OfferID:     uuid.New(),
		ParcelID:    uuid.New(),
		ListingID:   uuid.New(),
		SenderID:    uuid.New(),
		TravelerID:  uuid.New(),
		Price:       "30.00",
		PlatformFee: "2.10",
		Status:      status,
	})
}

func TestCreateCheckoutSenderOnly(t *testing.T) {
	e := newTestEnv()
	ctx := context.Background()
	req := e.seedRequest(models.RequestStatusPendingPayment)

	_, err := e.paymentSvc.CreateCheckout(ctx, req.TravelerID, req.ID)
	require.ErrorIs(t, err, apperr.ErrForbidden)

	session, err := e.paymentSvc.CreateCheckout(ctx, req.SenderID, req.ID)
	require.NoError(t, err)
	require.NotEmpty(t, session.CheckoutURL)

	tx, err := e.txs.GetByRequestID(ctx, req.ID)
	require.NoError(t, err)
	require.Equal(t, models.TxStatusPending, tx.Status)
	require.Equal(t, "32.10", tx.Amount) // price + fee
}

func TestCreateCheckoutWrongStateRejected(t *testing.T) {
	e := newTestEnv()
	ctx := context.Background()
	req := e.seedRequest(models.RequestStatusPaidHeld)

	_, err := e.paymentSvc.CreateCheckout(ctx, req.SenderID, req.ID)
	require.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestHoldConfirmedAdvancesRequest(t *testing.T) {
	e := newTestEnv()
	ctx := context.Background()
	req := e.seedRequest(models.RequestStatusPendingPayment)
	_, err := e.paymentSvc.CreateCheckout(ctx, req.SenderID, req.ID)
	require.NoError(t, err)

	err = e.paymentSvc.HandleProcessorEvent(ctx, ProcessorEvent{
		EventID:   "evt_1",
		Type:      EventHoldConfirmed,
		RequestID: req.ID,
		HoldRef:   "hold_abc",
	})
	require.NoError(t, err)

	got, err := e.requests.GetByID(ctx, req.ID)
	require.NoError(t, err)
	require.Equal(t, models.RequestStatusPaidHeld, got.Status)
	require.NotNil(t, got.ConfirmationCodeHash)

	tx, _ := e.txs.GetByRequestID(ctx, req.ID)
	require.Equal(t, models.TxStatusHeld, tx.Status)
	require.Equal(t, "hold_abc", *tx.HoldRef)

	// The sender gets the plaintext code exactly once, via the event stream.
	codes := e.pub.byType(events.EventConfirmationCode)
	require.Len(t, codes, 1)
	code, _ := codes[0].Payload["confirmation_code"].(string)
	require.Len(t, code, 8)
	require.NoError(t, VerifyConfirmationCode(*got.ConfirmationCodeHash, code))
}

func TestHoldConfirmedReplayIsNoOp(t *testing.T) {
	e := newTestEnv()
	ctx := context.Background()
	req := e.seedRequest(models.RequestStatusPendingPayment)
	_, err := e.paymentSvc.CreateCheckout(ctx, req.SenderID, req.ID)
	require.NoError(t, err)

	ev := ProcessorEvent{EventID: "evt_1", Type: EventHoldConfirmed, RequestID: req.ID, HoldRef: "hold_abc"}
	require.NoError(t, e.paymentSvc.HandleProcessorEvent(ctx, ev))

	got, _ := e.requests.GetByID(ctx, req.ID)
	firstHash := *got.ConfirmationCodeHash

	// Same event id delivered again: nothing may change, in particular the
	// confirmation code must not be regenerated.
	require.NoError(t, e.paymentSvc.HandleProcessorEvent(ctx, ev))

	got, _ = e.requests.GetByID(ctx, req.ID)
	require.Equal(t, models.RequestStatusPaidHeld, got.Status)
	require.Equal(t, firstHash, *got.ConfirmationCodeHash)
	require.Len(t, e.pub.byType(events.EventConfirmationCode), 1)
}

func TestHoldConfirmedRepairsCrashedDelivery(t *testing.T) {
	e := newTestEnv()
	ctx := context.Background()
	req := e.seedRequest(models.RequestStatusPendingPayment)
	_, err := e.paymentSvc.CreateCheckout(ctx, req.SenderID, req.ID)
	require.NoError(t, err)

	// Simulate a crash after MarkHeld but before the request advanced. The
	// event id was never retired, so the processor redelivers the same one.
	_, err = e.txs.MarkHeld(ctx, req.ID, "hold_abc")
	require.NoError(t, err)

	require.NoError(t, e.paymentSvc.HandleProcessorEvent(ctx, ProcessorEvent{
		EventID: "evt_1", Type: EventHoldConfirmed, RequestID: req.ID, HoldRef: "hold_abc",
	}))

	got, _ := e.requests.GetByID(ctx, req.ID)
	require.Equal(t, models.RequestStatusPaidHeld, got.Status)
	require.NotNil(t, got.ConfirmationCodeHash)
}

func TestFailedDeliveryDoesNotRetireEventID(t *testing.T) {
	e := newTestEnv()
	ctx := context.Background()
	req := e.seedRequest(models.RequestStatusPendingPayment)

	// No transaction row yet, so the first delivery errors out. The id must
	// stay unseen for the redelivery.
	ev := ProcessorEvent{EventID: "evt_1", Type: EventHoldConfirmed, RequestID: req.ID, HoldRef: "hold_abc"}
	require.Error(t, e.paymentSvc.HandleProcessorEvent(ctx, ev))

	_, err := e.paymentSvc.CreateCheckout(ctx, req.SenderID, req.ID)
	require.NoError(t, err)

	require.NoError(t, e.paymentSvc.HandleProcessorEvent(ctx, ev))

	got, _ := e.requests.GetByID(ctx, req.ID)
	require.Equal(t, models.RequestStatusPaidHeld, got.Status)
	tx, _ := e.txs.GetByRequestID(ctx, req.ID)
	require.Equal(t, models.TxStatusHeld, tx.Status)
}

func TestHoldConfirmedAfterHoldFailedDropped(t *testing.T) {
	e := newTestEnv()
	ctx := context.Background()
	req := e.seedRequest(models.RequestStatusPendingPayment)
	_, err := e.paymentSvc.CreateCheckout(ctx, req.SenderID, req.ID)
	require.NoError(t, err)

	// Out-of-order delivery: the failure lands first, then the stale
	// confirmation. The request must not advance on a failed hold.
	require.NoError(t, e.paymentSvc.HandleProcessorEvent(ctx, ProcessorEvent{
		EventID: "evt_1", Type: EventHoldFailed, RequestID: req.ID,
	}))
	require.NoError(t, e.paymentSvc.HandleProcessorEvent(ctx, ProcessorEvent{
		EventID: "evt_2", Type: EventHoldConfirmed, RequestID: req.ID, HoldRef: "hold_abc",
	}))

	got, _ := e.requests.GetByID(ctx, req.ID)
	require.Equal(t, models.RequestStatusPendingPayment, got.Status)
	require.Nil(t, got.ConfirmationCodeHash)
	tx, _ := e.txs.GetByRequestID(ctx, req.ID)
	require.Equal(t, models.TxStatusFailed, tx.Status)
	require.Empty(t, e.pub.byType(events.EventConfirmationCode))
}

func TestHoldConfirmedAfterCancelRefunds(t *testing.T) {
	e := newTestEnv()
	ctx := context.Background()
	req, _ := e.seedActiveRequest(t, models.RequestStatusPendingPayment)
	_, err := e.paymentSvc.CreateCheckout(ctx, req.SenderID, req.ID)
	require.NoError(t, err)

	_, err = e.requestSvc.CancelRequest(ctx, req.SenderID, req.ID)
	require.NoError(t, err)

	// The hold confirmation lost the race against the cancel. The money
	// must go straight back instead of staying held on a dead request.
	require.NoError(t, e.paymentSvc.HandleProcessorEvent(ctx, ProcessorEvent{
		EventID: "evt_1", Type: EventHoldConfirmed, RequestID: req.ID, HoldRef: "hold_abc",
	}))

	got, _ := e.requests.GetByID(ctx, req.ID)
	require.Equal(t, models.RequestStatusCancelled, got.Status)
	tx, _ := e.txs.GetByRequestID(ctx, req.ID)
	require.Equal(t, models.TxStatusRefunded, tx.Status)
	require.Len(t, e.proc.refunded, 1)
}

func TestCreateCheckoutRejectedWhileHeld(t *testing.T) {
	e := newTestEnv()
	ctx := context.Background()
	req := e.seedRequest(models.RequestStatusPendingPayment)
	_, err := e.paymentSvc.CreateCheckout(ctx, req.SenderID, req.ID)
	require.NoError(t, err)
	_, err = e.txs.MarkHeld(ctx, req.ID, "hold_abc")
	require.NoError(t, err)

	// Held row: no new hold may be opened against it.
	_, err = e.paymentSvc.CreateCheckout(ctx, req.SenderID, req.ID)
	require.ErrorIs(t, err, apperr.ErrConflict)
	require.Equal(t, 1, e.proc.holdsOpened)
}

func TestHoldFailedMarksTransaction(t *testing.T) {
	e := newTestEnv()
	ctx := context.Background()
	req := e.seedRequest(models.RequestStatusPendingPayment)
	_, err := e.paymentSvc.CreateCheckout(ctx, req.SenderID, req.ID)
	require.NoError(t, err)

	require.NoError(t, e.paymentSvc.HandleProcessorEvent(ctx, ProcessorEvent{
		EventID: "evt_1", Type: EventHoldFailed, RequestID: req.ID,
	}))

	tx, _ := e.txs.GetByRequestID(ctx, req.ID)
	require.Equal(t, models.TxStatusFailed, tx.Status)

	// Request stays pending_payment so the sender can retry checkout.
	got, _ := e.requests.GetByID(ctx, req.ID)
	require.Equal(t, models.RequestStatusPendingPayment, got.Status)

	// Retry opens a fresh session on the same transaction row.
	_, err = e.paymentSvc.CreateCheckout(ctx, req.SenderID, req.ID)
	require.NoError(t, err)
	tx, _ = e.txs.GetByRequestID(ctx, req.ID)
	require.Equal(t, models.TxStatusPending, tx.Status)
}

func TestAccountUpdatedFlipsPayoutsReady(t *testing.T) {
	e := newTestEnv()
	ctx := context.Background()
	acct := "acct_123"
	user := e.users.add(&models.User{Email: "t@example.com", PayoutAccountRef: &acct})

	require.NoError(t, e.paymentSvc.HandleProcessorEvent(ctx, ProcessorEvent{
		EventID: "evt_1", Type: EventAccountUpdated, AccountRef: acct, Ready: true,
	}))

	got, _ := e.users.GetByID(ctx, user.ID)
	require.True(t, got.PayoutsReady)
}

func TestReleaseRequiresPayoutAccount(t *testing.T) {
	e := newTestEnv()
	ctx := context.Background()
	req := e.seedRequest(models.RequestStatusCompleted)
	e.users.add(&models.User{ID: req.TravelerID, Email: "t@example.com"})

	_, err := e.paymentSvc.CreateCheckout(ctx, req.SenderID, req.ID)
	require.ErrorIs(t, err, apperr.ErrInvalidState) // completed, no checkout

	// Seed a held transaction directly.
	require.NoError(t, e.txs.UpsertCheckout(ctx, &models.Transaction{
		RequestID: req.ID, Amount: "32.10", PlatformFee: "2.10",
	}))
	_, err = e.txs.MarkHeld(ctx, req.ID, "hold_abc")
	require.NoError(t, err)

	err = e.paymentSvc.Release(ctx, req)
	require.ErrorIs(t, err, apperr.ErrPayoutAccountNotReady)

	tx, _ := e.txs.GetByRequestID(ctx, req.ID)
	require.Equal(t, models.TxStatusHeld, tx.Status)
}

func TestReleaseIdempotent(t *testing.T) {
	e := newTestEnv()
	ctx := context.Background()
	req := e.seedRequest(models.RequestStatusCompleted)
	acct := "acct_t"
	e.users.add(&models.User{ID: req.TravelerID, Email: "t@example.com", PayoutAccountRef: &acct, PayoutsReady: true})

	require.NoError(t, e.txs.UpsertCheckout(ctx, &models.Transaction{
		RequestID: req.ID, Amount: "32.10", PlatformFee: "2.10",
	}))
	_, err := e.txs.MarkHeld(ctx, req.ID, "hold_abc")
	require.NoError(t, err)

	require.NoError(t, e.paymentSvc.Release(ctx, req))
	require.NoError(t, e.paymentSvc.Release(ctx, req))

	require.Len(t, e.proc.captured, 1)
	tx, _ := e.txs.GetByRequestID(ctx, req.ID)
	require.Equal(t, models.TxStatusReleased, tx.Status)
}

func TestRefundIdempotent(t *testing.T) {
	e := newTestEnv()
	ctx := context.Background()
	req := e.seedRequest(models.RequestStatusDisputed)

	require.NoError(t, e.txs.UpsertCheckout(ctx, &models.Transaction{
		RequestID: req.ID, Amount: "32.10", PlatformFee: "2.10",
	}))
	_, err := e.txs.MarkHeld(ctx, req.ID, "hold_abc")
	require.NoError(t, err)

	require.NoError(t, e.paymentSvc.Refund(ctx, req))
	require.NoError(t, e.paymentSvc.Refund(ctx, req))

	require.Len(t, e.proc.refunded, 1)
	tx, _ := e.txs.GetByRequestID(ctx, req.ID)
	require.Equal(t, models.TxStatusRefunded, tx.Status)
}

func TestRefundWithoutHeldFundsRejected(t *testing.T) {
	e := newTestEnv()
	ctx := context.Background()
	req := e.seedRequest(models.RequestStatusPendingPayment)

	require.NoError(t, e.txs.UpsertCheckout(ctx, &models.Transaction{
		RequestID: req.ID, Amount: "32.10", PlatformFee: "2.10",
	}))

	err := e.paymentSvc.Refund(ctx, req)
	require.ErrorIs(t, err, apperr.ErrInvalidState)
}
