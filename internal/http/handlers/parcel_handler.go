package handlers

import (
	"github.com/carrymarket/backend/internal/http/dto"
	"github.com/carrymarket/backend/internal/middleware"
	"github.com/carrymarket/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ParcelHandler struct {
	parcelService *services.ParcelService
	log           *zap.Logger
}

func NewParcelHandler(parcelService *services.ParcelService, log *zap.Logger) *ParcelHandler {
	return &ParcelHandler{parcelService: parcelService, log: log}
}

func (h *ParcelHandler) CreateParcel(c *fiber.Ctx) error {
	var req dto.CreateParcelRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	parcel, err := h.parcelService.CreateParcel(c.Context(), middleware.GetUserID(c), services.CreateParcelParams{
		OriginCity:      req.OriginCity,
		DestinationCity: req.DestinationCity,
		WeightGrams:     req.WeightGrams,
		DeclaredValue:   req.DeclaredValue,
		Description:     req.Description,
		PhotoURLs:       req.PhotoURLs,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: parcel})
}

func (h *ParcelHandler) GetParcel(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid parcel id")
	}
	parcel, err := h.parcelService.GetParcel(c.Context(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: parcel})
}

func (h *ParcelHandler) MyParcels(c *fiber.Ctx) error {
	limit, offset := limitOffset(c)
	parcels, err := h.parcelService.MyParcels(c.Context(), middleware.GetUserID(c), c.Query("status"), limit, offset)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: parcels})
}

func (h *ParcelHandler) CancelParcel(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid parcel id")
	}
	if err := h.parcelService.CancelParcel(c.Context(), middleware.GetUserID(c), id); err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}
