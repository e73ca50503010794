package handlers

import (
	"errors"
	"math"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/example/partsmarket/internal/limiter"
	"github.com/example/partsmarket/internal/otp"
	"github.com/example/partsmarket/internal/services"
)

// Every accepted reset request gets this exact message.
const resetRequestedMessage = "If an account exists for this phone number, a reset code has been sent."

// PasswordResetHandler manages forgot-password endpoints.
type PasswordResetHandler struct {
	resets *services.PasswordResetService
}

// NewPasswordResetHandler constructs a PasswordResetHandler.
func NewPasswordResetHandler(resets *services.PasswordResetService) *PasswordResetHandler {
	return &PasswordResetHandler{resets: resets}
}

type resetRequest struct {
	Phone string `json:"phone" validate:"required"`
}

type verifyCodeRequest struct {
	Phone string `json:"phone" validate:"required"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

type confirmResetRequest struct {
	Phone       string `json:"phone" validate:"required"`
	Code        string `json:"code" validate:"required,len=6,numeric"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

// RequestReset issues a reset code. The response does not depend on whether
// the phone number is registered.
func (h *PasswordResetHandler) RequestReset(c *fiber.Ctx) error {
	var req resetRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	if err := h.resets.RequestReset(c.UserContext(), req.Phone); err != nil {
		return resetError(c, err)
	}

	return c.JSON(fiber.Map{"success": true, "message": resetRequestedMessage})
}

// Verify checks a code without consuming it.
func (h *PasswordResetHandler) Verify(c *fiber.Ctx) error {
	var req verifyCodeRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	if err := h.resets.VerifyOnly(c.UserContext(), req.Phone, req.Code); err != nil {
		return resetError(c, err)
	}

	return c.JSON(fiber.Map{"success": true, "message": "code is valid"})
}

// Confirm sets a new password using a valid code.
func (h *PasswordResetHandler) Confirm(c *fiber.Ctx) error {
	var req confirmResetRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	if err := h.resets.ConfirmReset(c.UserContext(), req.Phone, req.Code, req.NewPassword); err != nil {
		return resetError(c, err)
	}

	return c.JSON(fiber.Map{"success": true, "message": "password has been reset"})
}

func resetError(c *fiber.Ctx, err error) error {
	var rl *limiter.RateLimitError
	if errors.As(err, &rl) {
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(math.Ceil(rl.RetryAfter.Seconds()))))
	}

	switch {
	case errors.Is(err, otp.ErrLocked):
		return fiber.NewError(fiber.StatusTooManyRequests, "too many failed attempts, try again later")
	case errors.Is(err, otp.ErrNoCodeIssued):
		return fiber.NewError(fiber.StatusBadRequest, "no reset code was requested")
	case errors.Is(err, otp.ErrExpired):
		return fiber.NewError(fiber.StatusBadRequest, "reset code has expired, request a new one")
	case errors.Is(err, otp.ErrMismatch):
		return fiber.NewError(fiber.StatusBadRequest, "invalid reset code")
	case errors.Is(err, limiter.ErrRateLimited):
		return fiber.NewError(fiber.StatusTooManyRequests, "please wait before requesting another code")
	default:
		return accountError(err)
	}
}
