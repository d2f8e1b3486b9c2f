package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/carrymarket/backend/internal/apperr"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PaymentProcessor is the contract with the external escrow/payment
// provider. All calls are safe to retry: the processor deduplicates by
// request id / hold reference on its side.
type PaymentProcessor interface {
	OpenHold(ctx context.Context, p OpenHoldParams) (*CheckoutSession, error)
	Capture(ctx context.Context, holdRef, payoutAccountRef string) error
	Refund(ctx context.Context, holdRef string) error
	CreateOnboardingLink(ctx context.Context, userID uuid.UUID, email string) (*OnboardingLink, error)
}

type OpenHoldParams struct {
	RequestID   uuid.UUID `json:"request_id"`
	PayerID     uuid.UUID `json:"payer_id"`
	AmountCents int64     `json:"amount_cents"`
	FeeCents    int64     `json:"fee_cents"`
	Currency    string    `json:"currency"`
}

type CheckoutSession struct {
	SessionID   string `json:"session_id"`
	CheckoutURL string `json:"checkout_url"`
}

type OnboardingLink struct {
	AccountRef    string `json:"account_ref"`
	OnboardingURL string `json:"onboarding_url"`
}

// ProcessorClient talks to the payment processor's internal REST API.
type ProcessorClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        *zap.Logger
}

func NewProcessorClient(baseURL, apiKey string, log *zap.Logger) *ProcessorClient {
	return &ProcessorClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		log: log,
	}
}

func (c *ProcessorClient) OpenHold(ctx context.Context, p OpenHoldParams) (*CheckoutSession, error) {
	var session CheckoutSession
	if err := c.post(ctx, "/v1/holds", p, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (c *ProcessorClient) Capture(ctx context.Context, holdRef, payoutAccountRef string) error {
	body := map[string]any{"destination_account": payoutAccountRef}
	return c.post(ctx, fmt.Sprintf("/v1/holds/%s/capture", holdRef), body, nil)
}

func (c *ProcessorClient) Refund(ctx context.Context, holdRef string) error {
	return c.post(ctx, fmt.Sprintf("/v1/holds/%s/refund", holdRef), map[string]any{}, nil)
}

func (c *ProcessorClient) CreateOnboardingLink(ctx context.Context, userID uuid.UUID, email string) (*OnboardingLink, error) {
	body := map[string]any{"external_user_id": userID.String(), "email": email}
	var link OnboardingLink
	if err := c.post(ctx, "/v1/accounts/onboarding", body, &link); err != nil {
		return nil, err
	}
	return &link, nil
}

func (c *ProcessorClient) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(string(payload)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrUpstreamPaymentFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		c.log.Warn("processor call failed",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
		)
		return fmt.Errorf("%w: processor returned %d: %s", apperr.ErrUpstreamPaymentFailure, resp.StatusCode, string(b))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", apperr.ErrUpstreamPaymentFailure, err)
	}
	return nil
}

// ProcessorEvent is the normalized inbound webhook payload.
type ProcessorEvent struct {
	EventID    string    `json:"event_id"`
	Type       string    `json:"type"` // hold_confirmed / hold_failed / account_updated
	RequestID  uuid.UUID `json:"request_id"`
	HoldRef    string    `json:"hold_ref,omitempty"`
	AccountRef string    `json:"account_ref,omitempty"`
	Ready      bool      `json:"payouts_ready,omitempty"`
}

// Processor webhook event types
const (
	EventHoldConfirmed  = "hold_confirmed"
	EventHoldFailed     = "hold_failed"
	EventAccountUpdated = "account_updated"
)

// VerifyWebhookSignature checks the HMAC-SHA256 signature the processor
// puts on every webhook delivery. Comparison is constant time.
func VerifyWebhookSignature(secret string, body []byte, signature string) error {
	if secret == "" {
		return fmt.Errorf("webhook secret not configured")
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	decoded, err := hex.DecodeString(strings.TrimPrefix(signature, "sha256="))
	if err != nil {
		return fmt.Errorf("malformed signature")
	}
	if !hmac.Equal(decoded, mac.Sum(nil)) {
		return fmt.Errorf("signature mismatch")
	}
	return nil
}
