package handlers

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/carrymarket/backend/internal/auth"
	"github.com/carrymarket/backend/internal/config"
	"github.com/carrymarket/backend/internal/events"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// WSHub fans marketplace events out to connected participants. Events are
// addressed: the payload's sender_id/traveler_id decide who gets a copy.
// Confirmation codes in particular must only ever reach the sender.
type WSHub struct {
	cfg         *config.Config
	subscriber  events.Subscriber
	log         *zap.Logger
	mu          sync.RWMutex
	connections map[uuid.UUID][]*websocket.Conn
}

func NewWSHub(cfg *config.Config, subscriber events.Subscriber, log *zap.Logger) *WSHub {
	return &WSHub{
		cfg:         cfg,
		subscriber:  subscriber,
		log:         log,
		connections: make(map[uuid.UUID][]*websocket.Conn),
	}
}

func (h *WSHub) Start(ctx context.Context) {
	_ = h.subscriber.Subscribe(ctx, events.StreamRequests, func(event events.Event) {
		h.dispatch(event)
	})
}

// dispatch routes an event to the users named in its payload.
func (h *WSHub) dispatch(event events.Event) {
	if event.Type == events.EventConfirmationCode {
		if id, ok := payloadUUID(event.Payload, "sender_id"); ok {
			h.SendToUser(id, event)
		}
		return
	}
	seen := map[uuid.UUID]bool{}
	for _, key := range []string{"sender_id", "traveler_id"} {
		if id, ok := payloadUUID(event.Payload, key); ok && !seen[id] {
			seen[id] = true
			h.SendToUser(id, event)
		}
	}
}

func payloadUUID(payload map[string]any, key string) (uuid.UUID, bool) {
	v, ok := payload[key]
	if !ok {
		return uuid.Nil, false
	}
	s, ok := v.(string)
	if !ok {
		// Events published in-process carry uuid.UUID values directly.
		if id, isUUID := v.(uuid.UUID); isUUID {
			return id, true
		}
		return uuid.Nil, false
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func (h *WSHub) SendToUser(userID uuid.UUID, event events.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, conn := range h.connections[userID] {
		_ = conn.WriteMessage(websocket.TextMessage, data)
	}
}

// WSUpgradeMiddleware checks for websocket upgrade
func WSUpgradeMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

func (h *WSHub) HandleWS(conn *websocket.Conn) {
	tokenStr := conn.Query("token")
	if tokenStr == "" {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"missing token"}`))
		conn.Close()
		return
	}

	claims, err := auth.ParseJWT(h.cfg.JWTSecret, tokenStr)
	if err != nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"invalid token"}`))
		conn.Close()
		return
	}

	userID := claims.UserID

	h.mu.Lock()
	h.connections[userID] = append(h.connections[userID], conn)
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		conns := h.connections[userID]
		for i, c := range conns {
			if c == conn {
				h.connections[userID] = append(conns[:i], conns[i+1:]...)
				break
			}
		}
		if len(h.connections[userID]) == 0 {
			delete(h.connections, userID)
		}
		h.mu.Unlock()
		conn.Close()
	}()

	// Read loop (keep alive / pings)
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			break
		}
	}
}
