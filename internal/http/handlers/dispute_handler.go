package handlers

import (
	"github.com/carrymarket/backend/internal/http/dto"
	"github.com/carrymarket/backend/internal/middleware"
	"github.com/carrymarket/backend/internal/rbac"
	"github.com/carrymarket/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type DisputeHandler struct {
	disputeService *services.DisputeService
	log            *zap.Logger
}

func NewDisputeHandler(disputeService *services.DisputeService, log *zap.Logger) *DisputeHandler {
	return &DisputeHandler{disputeService: disputeService, log: log}
}

func (h *DisputeHandler) OpenDispute(c *fiber.Ctx) error {
	requestID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid request id")
	}
	var body dto.OpenDisputeRequest
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if body.Reason == "" {
		return badRequest(c, "reason is required")
	}

	dispute, err := h.disputeService.OpenDispute(c.Context(), middleware.GetUserID(c), requestID, body.Reason)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: dispute})
}

func (h *DisputeHandler) GetDispute(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid dispute id")
	}
	isAdmin := middleware.GetRole(c) == rbac.RoleAdmin
	dispute, err := h.disputeService.GetDispute(c.Context(), middleware.GetUserID(c), isAdmin, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dispute})
}

// Admin endpoints.

func (h *DisputeHandler) ListOpen(c *fiber.Ctx) error {
	limit, offset := limitOffset(c)
	disputes, err := h.disputeService.ListOpen(c.Context(), limit, offset)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: disputes})
}

func (h *DisputeHandler) Resolve(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid dispute id")
	}
	var body dto.ResolveDisputeRequest
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "invalid request body")
	}

	dispute, err := h.disputeService.Resolve(c.Context(), middleware.GetUserID(c), id, body.Ruling)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dispute})
}
