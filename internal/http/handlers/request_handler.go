package handlers

import (
	"github.com/carrymarket/backend/internal/http/dto"
	"github.com/carrymarket/backend/internal/middleware"
	"github.com/carrymarket/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type RequestHandler struct {
	requestService *services.RequestService
	log            *zap.Logger
}

func NewRequestHandler(requestService *services.RequestService, log *zap.Logger) *RequestHandler {
	return &RequestHandler{requestService: requestService, log: log}
}

func (h *RequestHandler) GetRequest(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid request id")
	}
	req, err := h.requestService.GetRequest(c.Context(), middleware.GetUserID(c), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: req})
}

func (h *RequestHandler) ListRequests(c *fiber.Ctx) error {
	limit, offset := limitOffset(c)
	reqs, err := h.requestService.ListRequests(c.Context(), middleware.GetUserID(c), c.Query("status"), limit, offset)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: reqs})
}

func (h *RequestHandler) MarkPickedUp(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid request id")
	}
	req, err := h.requestService.MarkPickedUp(c.Context(), middleware.GetUserID(c), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: req})
}

func (h *RequestHandler) MarkDelivered(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid request id")
	}
	req, err := h.requestService.MarkDelivered(c.Context(), middleware.GetUserID(c), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: req})
}

func (h *RequestHandler) ConfirmDelivery(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid request id")
	}
	var body dto.ConfirmDeliveryRequest
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if body.Code == "" {
		return badRequest(c, "code is required")
	}

	req, err := h.requestService.ConfirmDelivery(c.Context(), middleware.GetUserID(c), id, body.Code)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: req})
}

func (h *RequestHandler) CancelRequest(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid request id")
	}
	req, err := h.requestService.CancelRequest(c.Context(), middleware.GetUserID(c), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: req})
}

func (h *RequestHandler) ListEvents(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid request id")
	}
	limit, offset := limitOffset(c)
	entries, err := h.requestService.ListRequestEvents(c.Context(), middleware.GetUserID(c), id, limit, offset)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: entries})
}
