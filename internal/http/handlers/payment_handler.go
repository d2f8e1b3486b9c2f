package handlers

import (
	"encoding/json"

	"github.com/carrymarket/backend/internal/config"
	"github.com/carrymarket/backend/internal/http/dto"
	"github.com/carrymarket/backend/internal/middleware"
	"github.com/carrymarket/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type PaymentHandler struct {
	paymentService *services.PaymentService
	cfg            *config.Config
	log            *zap.Logger
}

func NewPaymentHandler(paymentService *services.PaymentService, cfg *config.Config, log *zap.Logger) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService, cfg: cfg, log: log}
}

func (h *PaymentHandler) CreateCheckout(c *fiber.Ctx) error {
	requestID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid request id")
	}
	session, err := h.paymentService.CreateCheckout(c.Context(), middleware.GetUserID(c), requestID)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: dto.CheckoutResponse{
		SessionID:   session.SessionID,
		CheckoutURL: session.CheckoutURL,
	}})
}

func (h *PaymentHandler) GetTransaction(c *fiber.Ctx) error {
	requestID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid request id")
	}
	tx, err := h.paymentService.GetTransaction(c.Context(), middleware.GetUserID(c), requestID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: tx})
}

func (h *PaymentHandler) PayoutOnboarding(c *fiber.Ctx) error {
	link, err := h.paymentService.PayoutOnboardingLink(c.Context(), middleware.GetUserID(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.OnboardingResponse{
		AccountRef:    link.AccountRef,
		OnboardingURL: link.OnboardingURL,
	}})
}

// ProcessorWebhook receives escrow state changes from the payment
// processor. The raw body is verified against the shared secret before
// anything is parsed out of it.
func (h *PaymentHandler) ProcessorWebhook(c *fiber.Ctx) error {
	body := c.Body()
	signature := c.Get("X-Processor-Signature")

	if err := services.VerifyWebhookSignature(h.cfg.ProcessorWebhookSecret, body, signature); err != nil {
		h.log.Warn("processor webhook rejected", zap.Error(err))
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: "invalid signature"})
	}

	var ev services.ProcessorEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return badRequest(c, "invalid event payload")
	}
	if ev.EventID == "" || ev.Type == "" {
		return badRequest(c, "event_id and type are required")
	}

	if err := h.paymentService.HandleProcessorEvent(c.Context(), ev); err != nil {
		h.log.Error("processor event handling failed",
			zap.String("event_id", ev.EventID),
			zap.String("type", ev.Type),
			zap.Error(err),
		)
		// Non-2xx makes the processor redeliver; dedup makes that safe.
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "event handling failed"})
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}
