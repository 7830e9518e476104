package middleware

import (
	"context"

	"github.com/gekymedia/gekychat-sub007/internal/httpx"
	"github.com/gekymedia/gekychat-sub007/internal/models"
	"github.com/gofiber/fiber/v2"
)

type UserLoader interface {
	LoadUser(ctx context.Context, userID uint) (*models.User, error)
}

// LoadUser resolves the authenticated user ID into a fresh user row and stores
// it under "user". Flags such as admin and banned are read from the database,
// never from the token.
func LoadUser(loader UserLoader) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := httpx.LocalUint(c, "userID")
		if err != nil {
			return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
		}
		user, err := loader.LoadUser(c.UserContext(), userID)
		if err != nil {
			return httpx.FromError(c, err)
		}
		if user.IsBanned {
			return httpx.Forbidden(c, "USER_BANNED", "user is banned")
		}
		c.Locals("user", user)
		return c.Next()
	}
}

// RequireAdmin must run after LoadUser.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, ok := c.Locals("user").(*models.User)
		if !ok || !user.IsAdmin {
			return httpx.Forbidden(c, "forbidden", "Insufficient permissions")
		}
		return c.Next()
	}
}
