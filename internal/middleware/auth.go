package middleware

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/partsmarket/internal/tokens"
	"github.com/example/partsmarket/internal/utils"
)

const claimsContextKey = "currentClaims"

// AuthMiddleware validates access tokens and loads the caller's claims into
// context. Tokens revoked in denylist are rejected; denylist may be nil.
func AuthMiddleware(secret string, denylist *tokens.Denylist) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing authorization header")
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid authorization header")
		}

		claims, err := utils.ParseTokenOfType(secret, strings.TrimSpace(parts[1]), utils.AccessToken)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
		}

		if denylist != nil {
			revoked, err := denylist.IsRevoked(c.UserContext(), claims.ID)
			if err != nil {
				log.Printf("[Auth] Revocation check skipped: %v", err)
			} else if revoked {
				return fiber.NewError(fiber.StatusUnauthorized, "token has been revoked")
			}
		}

		c.Locals(claimsContextKey, claims)
		return c.Next()
	}
}

// RequireUserType rejects callers whose token carries none of the given user types.
// It must run after AuthMiddleware.
func RequireUserType(types ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, ok := currentClaims(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
		}
		for _, t := range types {
			if claims.UserType == t {
				return c.Next()
			}
		}
		return fiber.NewError(fiber.StatusForbidden, "forbidden")
	}
}

// GetCurrentClaims returns the claims of the authenticated token.
func GetCurrentClaims(c *fiber.Ctx) (utils.TokenClaims, bool) {
	return currentClaims(c)
}

// GetCurrentUserID extracts the authenticated user ID from context.
func GetCurrentUserID(c *fiber.Ctx) (uuid.UUID, bool) {
	claims, ok := currentClaims(c)
	if !ok {
		return uuid.Nil, false
	}
	return claims.UserID, true
}

func currentClaims(c *fiber.Ctx) (utils.TokenClaims, bool) {
	claims, ok := c.Locals(claimsContextKey).(utils.TokenClaims)
	return claims, ok
}
