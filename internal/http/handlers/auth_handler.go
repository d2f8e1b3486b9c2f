package handlers

import (
	"errors"
	"strings"

	"github.com/carrymarket/backend/internal/apperr"
	"github.com/carrymarket/backend/internal/auth"
	"github.com/carrymarket/backend/internal/config"
	"github.com/carrymarket/backend/internal/http/dto"
	"github.com/carrymarket/backend/internal/models"
	"github.com/carrymarket/backend/internal/repositories"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type AuthHandler struct {
	userRepo *repositories.UserRepo
	cfg      *config.Config
	log      *zap.Logger
}

func NewAuthHandler(userRepo *repositories.UserRepo, cfg *config.Config, log *zap.Logger) *AuthHandler {
	return &AuthHandler{userRepo: userRepo, cfg: cfg, log: log}
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return badRequest(c, "valid email is required")
	}
	if req.FullName == "" {
		return badRequest(c, "full_name is required")
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrWeakPassword) {
			return badRequest(c, err.Error())
		}
		return fail(c, err)
	}

	user := &models.User{
		Email:        email,
		FullName:     req.FullName,
		Role:         models.RoleUser,
		PasswordHash: hash,
	}
	if err := h.userRepo.Create(c.Context(), user); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Error: "email already registered"})
		}
		return fail(c, err)
	}

	token, err := auth.GenerateJWT(h.cfg.JWTSecret, user.ID, user.Role, h.cfg.JWTExpiration)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.AuthResponse{Token: token, User: user})
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	user, err := h.userRepo.GetByEmail(c.Context(), email)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: "invalid credentials"})
	}
	if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: "invalid credentials"})
	}

	_ = h.userRepo.Touch(c.Context(), user.ID)

	token, err := auth.GenerateJWT(h.cfg.JWTSecret, user.ID, user.Role, h.cfg.JWTExpiration)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.AuthResponse{Token: token, User: user})
}
