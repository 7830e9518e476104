package middleware

import (
	"context"
	"strings"

	"github.com/gekymedia/gekychat-sub007/internal/httpx"
	"github.com/gekymedia/gekychat-sub007/internal/models"
	"github.com/gofiber/fiber/v2"
)

const (
	HeaderClientID     = "X-Client-Id"
	HeaderClientSecret = "X-Client-Secret"
)

type ClientAuthenticator interface {
	AuthenticateClient(ctx context.Context, clientID, secret string) (*models.PlatformClient, error)
}

// PlatformAuth authenticates API clients by id and secret headers and stores
// the client under "platformClient".
func PlatformAuth(auth ClientAuthenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		clientID := strings.TrimSpace(c.Get(HeaderClientID))
		secret := c.Get(HeaderClientSecret)
		if clientID == "" || secret == "" {
			return httpx.Unauthorized(c, "missing_client_credentials", "Client credentials are required")
		}

		client, err := auth.AuthenticateClient(c.UserContext(), clientID, secret)
		if err != nil {
			return httpx.FromError(c, err)
		}

		c.Locals("platformClient", client)
		c.Locals("platformClientID", client.ClientID)
		return c.Next()
	}
}

// PlatformClientKey keys the rate limiter by authenticated client.
func PlatformClientKey(c *fiber.Ctx) string {
	if id, ok := c.Locals("platformClientID").(string); ok && id != "" {
		return "client:" + id
	}
	return "ip:" + c.IP()
}
