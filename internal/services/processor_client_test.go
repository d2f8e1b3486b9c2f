package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/carrymarket/backend/internal/apperr"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyWebhookSignature(t *testing.T) {
	secret := "whsec_test"
	body := []byte(`{"event_id":"evt_1","type":"hold_confirmed"}`)

	require.NoError(t, VerifyWebhookSignature(secret, body, sign(secret, body)))

	// Prefix is optional
	bare := sign(secret, body)[len("sha256="):]
	require.NoError(t, VerifyWebhookSignature(secret, body, bare))

	require.Error(t, VerifyWebhookSignature(secret, body, sign("other_secret", body)))
	require.Error(t, VerifyWebhookSignature(secret, []byte(`tampered`), sign(secret, body)))
	require.Error(t, VerifyWebhookSignature(secret, body, "not-hex"))
	require.Error(t, VerifyWebhookSignature(secret, body, ""))
	require.Error(t, VerifyWebhookSignature("", body, sign(secret, body)))
}

func TestProcessorClientOpenHold(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/holds", r.URL.Path)
		require.Equal(t, "Bearer key_test", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"session_id":"sess_1","checkout_url":"https://pay.example/s/1"}`))
	}))
	defer srv.Close()

	client := NewProcessorClient(srv.URL, "key_test", zap.NewNop())
	session, err := client.OpenHold(context.Background(), OpenHoldParams{
		RequestID:   uuid.New(),
		PayerID:     uuid.New(),
		AmountCents: 3210,
		FeeCents:    210,
		Currency:    "USD",
	})
	require.NoError(t, err)
	require.Equal(t, "sess_1", session.SessionID)
	require.Equal(t, "https://pay.example/s/1", session.CheckoutURL)
}

func TestProcessorClientUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewProcessorClient(srv.URL, "key_test", zap.NewNop())
	err := client.Capture(context.Background(), "hold_1", "acct_1")
	require.ErrorIs(t, err, apperr.ErrUpstreamPaymentFailure)
}
