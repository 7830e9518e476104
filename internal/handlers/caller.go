package handlers

import (
	"github.com/gekymedia/gekychat-sub007/internal/models"
	"github.com/gekymedia/gekychat-sub007/internal/service"
	"github.com/gofiber/fiber/v2"
)

// userCaller reads the user stored by middleware.LoadUser.
func userCaller(c *fiber.Ctx) (service.Caller, bool) {
	user, ok := c.Locals("user").(*models.User)
	if !ok || user == nil {
		return service.Caller{}, false
	}
	return service.UserCaller(user), true
}

// platformCaller reads the client stored by middleware.PlatformAuth.
func platformCaller(c *fiber.Ctx) (service.Caller, bool) {
	client, ok := c.Locals("platformClient").(*models.PlatformClient)
	if !ok || client == nil {
		return service.Caller{}, false
	}
	return service.PlatformCaller(client), true
}
