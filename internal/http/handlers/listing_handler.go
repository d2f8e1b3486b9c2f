package handlers

import (
	"github.com/carrymarket/backend/internal/http/dto"
	"github.com/carrymarket/backend/internal/middleware"
	"github.com/carrymarket/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ListingHandler struct {
	listingService *services.ListingService
	log            *zap.Logger
}

func NewListingHandler(listingService *services.ListingService, log *zap.Logger) *ListingHandler {
	return &ListingHandler{listingService: listingService, log: log}
}

func (h *ListingHandler) CreateListing(c *fiber.Ctx) error {
	var req dto.CreateListingRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	listing, err := h.listingService.CreateListing(c.Context(), middleware.GetUserID(c), services.CreateListingParams{
		OriginCity:       req.OriginCity,
		DestinationCity:  req.DestinationCity,
		DepartAfter:      req.DepartAfter,
		DepartBefore:     req.DepartBefore,
		WeightTotalGrams: req.WeightTotalGrams,
		PricePerKG:       req.PricePerKG,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: listing})
}

func (h *ListingHandler) GetListing(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid listing id")
	}
	listing, err := h.listingService.GetListing(c.Context(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: listing})
}

func (h *ListingHandler) SearchListings(c *fiber.Ctx) error {
	limit, offset := limitOffset(c)
	listings, err := h.listingService.SearchListings(c.Context(),
		c.Query("origin"), c.Query("destination"), limit, offset)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: listings})
}

func (h *ListingHandler) MyListings(c *fiber.Ctx) error {
	limit, offset := limitOffset(c)
	listings, err := h.listingService.MyListings(c.Context(), middleware.GetUserID(c), limit, offset)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: listings})
}

func (h *ListingHandler) CancelListing(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid listing id")
	}
	if err := h.listingService.CancelListing(c.Context(), middleware.GetUserID(c), id); err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}
