package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/example/partsmarket/internal/config"
	"github.com/example/partsmarket/internal/middleware"
	"github.com/example/partsmarket/internal/models"
	"github.com/example/partsmarket/internal/phone"
	"github.com/example/partsmarket/internal/services"
	"github.com/example/partsmarket/internal/tokens"
	"github.com/example/partsmarket/internal/utils"
)

// AuthHandler bundles dependencies for authentication endpoints.
type AuthHandler struct {
	accounts *services.AccountService
	resets   *services.PasswordResetService
	cfg      *config.Config
	denylist *tokens.Denylist
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(accounts *services.AccountService, resets *services.PasswordResetService, cfg *config.Config, denylist *tokens.Denylist) *AuthHandler {
	return &AuthHandler{accounts: accounts, resets: resets, cfg: cfg, denylist: denylist}
}

type registerRequest struct {
	FirstName       string `json:"first_name" validate:"required,max=150"`
	LastName        string `json:"last_name" validate:"max=150"`
	Phone           string `json:"phone" validate:"required"`
	Email           string `json:"email" validate:"omitempty,email"`
	Password        string `json:"password" validate:"required,min=8"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
}

// Register creates a new user account.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	user, err := h.accounts.Register(c.UserContext(), services.RegisterInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		Email:     req.Email,
		Password:  req.Password,
	})
	if err != nil {
		return accountError(err)
	}

	access, refresh, err := h.issueTokens(user)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":       true,
		"user":          userResponse(user),
		"token":         access,
		"refresh_token": refresh,
	})
}

type loginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

// Login authenticates an existing user by phone or email.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	user, err := h.accounts.Login(c.UserContext(), req.Identifier, req.Password)
	if err != nil {
		return accountError(err)
	}

	access, refresh, err := h.issueTokens(user)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":       true,
		"user":          userResponse(user),
		"token":         access,
		"refresh_token": refresh,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// Refresh exchanges a valid refresh token for a new access token.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req refreshRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	claims, err := utils.ParseTokenOfType(h.cfg.JWTSecret, req.RefreshToken, utils.RefreshToken)
	if err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid refresh token")
	}
	if h.revoked(c, claims.ID) {
		return fiber.NewError(fiber.StatusUnauthorized, "refresh token has been revoked")
	}

	user, err := h.accounts.Profile(c.UserContext(), claims.UserID)
	if errors.Is(err, services.ErrNotFound) {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid refresh token")
	}
	if err != nil {
		return err
	}
	if !user.IsActive {
		return accountError(services.ErrAccountInactive)
	}

	access, err := utils.GenerateToken(h.cfg.JWTSecret, user.ID, user.UserType, h.cfg.TokenExpires)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to generate token")
	}

	return c.JSON(fiber.Map{"success": true, "token": access})
}

// Logout revokes the refresh token in the body and the access token used to
// call it.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	current, ok := middleware.GetCurrentClaims(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req refreshRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	refresh, err := utils.ParseTokenOfType(h.cfg.JWTSecret, req.RefreshToken, utils.RefreshToken)
	if err != nil || refresh.UserID != current.UserID {
		return fiber.NewError(fiber.StatusBadRequest, "invalid refresh token")
	}

	ctx := c.UserContext()
	if err := h.denylist.Revoke(ctx, refresh.ID, refresh.ExpiresAt); err != nil {
		return err
	}
	if err := h.denylist.Revoke(ctx, current.ID, current.ExpiresAt); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "message": "logged out"})
}

func (h *AuthHandler) issueTokens(user *models.User) (string, string, error) {
	access, err := utils.GenerateToken(h.cfg.JWTSecret, user.ID, user.UserType, h.cfg.TokenExpires)
	if err != nil {
		return "", "", fiber.NewError(fiber.StatusInternalServerError, "failed to generate token")
	}
	refresh, err := utils.GenerateRefreshToken(h.cfg.JWTSecret, user.ID, user.UserType, h.cfg.RefreshExpires)
	if err != nil {
		return "", "", fiber.NewError(fiber.StatusInternalServerError, "failed to generate token")
	}
	return access, refresh, nil
}

func (h *AuthHandler) revoked(c *fiber.Ctx, id string) bool {
	revoked, err := h.denylist.IsRevoked(c.UserContext(), id)
	if err != nil {
		log.Printf("[Auth] Revocation check skipped: %v", err)
		return false
	}
	return revoked
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8"`
}

// ChangePassword updates the password of the authenticated user.
func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req changePasswordRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	if err := h.resets.ChangePassword(c.UserContext(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		return accountError(err)
	}

	return c.JSON(fiber.Map{"success": true, "message": "password changed successfully"})
}

func userResponse(u *models.User) fiber.Map {
	return fiber.Map{
		"id":           u.ID,
		"first_name":   u.FirstName,
		"last_name":    u.LastName,
		"display_name": u.DisplayName,
		"phone":        u.Phone,
		"email":        u.Email,
		"user_type":    u.UserType,
		"is_active":    u.IsActive,
		"created_at":   u.CreatedAt,
	}
}

func accountError(err error) error {
	switch {
	case errors.Is(err, phone.ErrInvalidFormat):
		return fiber.NewError(fiber.StatusBadRequest, "invalid Sri Lankan phone number")
	case errors.Is(err, phone.ErrInvalidEmail):
		return fiber.NewError(fiber.StatusBadRequest, "invalid email address")
	case errors.Is(err, services.ErrWeakPassword):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrAlreadyExists):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, services.ErrInvalidLogin):
		return fiber.NewError(fiber.StatusUnauthorized, err.Error())
	case errors.Is(err, services.ErrAccountInactive):
		return fiber.NewError(fiber.StatusForbidden, err.Error())
	case errors.Is(err, services.ErrInvalidCredential):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	default:
		return err
	}
}
