package apperr

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// Sentinel errors for every business-rule outcome the API can surface.
// Handlers translate these to HTTP codes via Status; services wrap them
// with %w so callers can test with errors.Is.
var (
	ErrNotFound                = errors.New("not found")
	ErrForbidden               = errors.New("forbidden")
	ErrInvalidState            = errors.New("operation not valid for current state")
	ErrConflict                = errors.New("conflicting concurrent update")
	ErrInsufficientCapacity    = errors.New("insufficient listing capacity")
	ErrInvalidConfirmationCode = errors.New("invalid confirmation code")
	ErrPayoutAccountNotReady   = errors.New("traveler payout account not ready")
	ErrTooManyAttempts         = errors.New("too many attempts")
	ErrUpstreamPaymentFailure  = errors.New("payment processor failure")
	ErrDisputed                = errors.New("request is under dispute")
)

// Status maps a business error to an HTTP status code.
// Unknown errors map to 500.
func Status(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return fiber.StatusForbidden
	case errors.Is(err, ErrInvalidState), errors.Is(err, ErrDisputed):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, ErrConflict), errors.Is(err, ErrInsufficientCapacity):
		return fiber.StatusConflict
	case errors.Is(err, ErrInvalidConfirmationCode):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, ErrPayoutAccountNotReady):
		return fiber.StatusConflict
	case errors.Is(err, ErrTooManyAttempts):
		return fiber.StatusTooManyRequests
	case errors.Is(err, ErrUpstreamPaymentFailure):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// IsBusiness reports whether err is an expected business outcome rather
// than an internal failure, so handlers can decide what to log at error level.
func IsBusiness(err error) bool {
	return Status(err) != fiber.StatusInternalServerError
}
