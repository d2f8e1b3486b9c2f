package handlers

import (
	"github.com/carrymarket/backend/internal/http/dto"
	"github.com/carrymarket/backend/internal/middleware"
	"github.com/carrymarket/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type OfferHandler struct {
	offerService *services.OfferService
	log          *zap.Logger
}

func NewOfferHandler(offerService *services.OfferService, log *zap.Logger) *OfferHandler {
	return &OfferHandler{offerService: offerService, log: log}
}

func (h *OfferHandler) CreateOffer(c *fiber.Ctx) error {
	var req dto.CreateOfferRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	parcelID, err := uuid.Parse(req.ParcelID)
	if err != nil {
		return badRequest(c, "invalid parcel_id")
	}
	listingID, err := uuid.Parse(req.ListingID)
	if err != nil {
		return badRequest(c, "invalid listing_id")
	}

	offer, err := h.offerService.CreateOffer(c.Context(), middleware.GetUserID(c), services.CreateOfferParams{
		ParcelID:  parcelID,
		ListingID: listingID,
		Price:     req.Price,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: offer})
}

func (h *OfferHandler) GetOffer(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid offer id")
	}
	offer, err := h.offerService.GetOffer(c.Context(), middleware.GetUserID(c), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: offer})
}

func (h *OfferHandler) AcceptOffer(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid offer id")
	}
	request, err := h.offerService.AcceptOffer(c.Context(), middleware.GetUserID(c), id)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: request})
}

func (h *OfferHandler) RejectOffer(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid offer id")
	}
	if err := h.offerService.RejectOffer(c.Context(), middleware.GetUserID(c), id); err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *OfferHandler) CancelOffer(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid offer id")
	}
	if err := h.offerService.CancelOffer(c.Context(), middleware.GetUserID(c), id); err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *OfferHandler) ListForListing(c *fiber.Ctx) error {
	listingID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid listing id")
	}
	offers, err := h.offerService.ListForListing(c.Context(), middleware.GetUserID(c), listingID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: offers})
}
