package handlers

import (
	"github.com/carrymarket/backend/internal/apperr"
	"github.com/carrymarket/backend/internal/http/dto"
	"github.com/gofiber/fiber/v2"
)

// fail maps a service error to its HTTP status and error body.
func fail(c *fiber.Ctx, err error) error {
	return c.Status(apperr.Status(err)).JSON(dto.ErrorResponse{Error: err.Error()})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: msg})
}

func limitOffset(c *fiber.Ctx) (int, int) {
	limit := c.QueryInt("limit", 20)
	if limit < 1 || limit > 100 {
		limit = 20
	}
	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
