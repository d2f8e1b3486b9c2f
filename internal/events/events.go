package events

import "context"

// Event types consumed by the notification dispatcher and websocket feed.
const (
	EventOfferCreated      = "offer_created"
	EventOfferAccepted     = "offer_accepted"
	EventRequestTransition = "request_status_changed"
	EventPaymentHeld       = "payment_held"
	EventPaymentFailed     = "payment_failed"
	EventDeliveryConfirmed = "delivery_confirmed"
	EventDisputeOpened     = "dispute_opened"
	EventDisputeResolved   = "dispute_resolved"
	EventConfirmationCode  = "confirmation_code_issued"
)

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}
