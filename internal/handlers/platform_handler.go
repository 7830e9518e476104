package handlers

import (
	"github.com/gekymedia/gekychat-sub007/internal/httpx"
	"github.com/gekymedia/gekychat-sub007/internal/service"
	"github.com/gofiber/fiber/v2"
)

// PlatformHandler serves API clients authenticated by middleware.PlatformAuth.
// Messages are sent as the client's owner and deduplicated by external_ref.
type PlatformHandler struct {
	messageService *service.MessageService
}

func NewPlatformHandler(messageService *service.MessageService) *PlatformHandler {
	return &PlatformHandler{messageService: messageService}
}

// POST /api/platform/messages/send-to-phone
func (h *PlatformHandler) SendToPhone(c *fiber.Ctx) error {
	caller, ok := platformCaller(c)
	if !ok {
		return httpx.Unauthorized(c, "missing_client_credentials", "Client credentials are required")
	}

	var input service.SendToPhoneInput
	if err := c.BodyParser(&input); err != nil {
		return httpx.BadRequest(c, "invalid_request_body", "Invalid request body")
	}

	res, err := h.messageService.SendToPhone(c.UserContext(), caller, input)
	if err != nil {
		return httpx.FromError(c, err)
	}
	return c.Status(sendStatus(res)).JSON(res)
}

// POST /api/platform/conversations/:id/messages
func (h *PlatformHandler) SendToConversation(c *fiber.Ctx) error {
	caller, ok := platformCaller(c)
	if !ok {
		return httpx.Unauthorized(c, "missing_client_credentials", "Client credentials are required")
	}
	conversationID, err := httpx.ParamUint(c, "id")
	if err != nil {
		return httpx.BadRequest(c, "invalid_conversation_id", "Invalid conversation id")
	}

	var input service.SendInput
	if err := c.BodyParser(&input); err != nil {
		return httpx.BadRequest(c, "invalid_request_body", "Invalid request body")
	}

	res, err := h.messageService.SendFromPlatform(c.UserContext(), caller, conversationID, input)
	if err != nil {
		return httpx.FromError(c, err)
	}
	return c.Status(sendStatus(res)).JSON(res)
}
