package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/partsmarket/internal/middleware"
	"github.com/example/partsmarket/internal/services"
)

// ProfileHandler manages user profile endpoints.
type ProfileHandler struct {
	accounts *services.AccountService
}

// NewProfileHandler constructs ProfileHandler.
func NewProfileHandler(accounts *services.AccountService) *ProfileHandler {
	return &ProfileHandler{accounts: accounts}
}

// GetProfile returns authenticated user profile.
func (h *ProfileHandler) GetProfile(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	user, err := h.accounts.Profile(c.UserContext(), userID)
	if err != nil {
		return accountError(err)
	}

	return c.JSON(fiber.Map{"success": true, "data": userResponse(user)})
}

type updateProfileRequest struct {
	FirstName *string `json:"first_name" validate:"omitempty,max=150"`
	LastName  *string `json:"last_name" validate:"omitempty,max=150"`
	Email     *string `json:"email"`
	Phone     *string `json:"phone"`
}

// UpdateProfile updates user profile fields. Omitted fields are left alone.
func (h *ProfileHandler) UpdateProfile(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req updateProfileRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	user, err := h.accounts.UpdateProfile(c.UserContext(), userID, services.ProfileUpdate{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
	})
	if err != nil {
		return accountError(err)
	}

	return c.JSON(fiber.Map{"success": true, "message": "profile updated", "data": userResponse(user)})
}
