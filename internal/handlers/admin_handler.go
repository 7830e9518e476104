package handlers

import (
	"github.com/gekymedia/gekychat-sub007/internal/httpx"
	"github.com/gekymedia/gekychat-sub007/internal/service"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type AdminHandler struct {
	messageService *service.MessageService
	log            *zap.Logger
}

func NewAdminHandler(messageService *service.MessageService, log *zap.Logger) *AdminHandler {
	return &AdminHandler{messageService: messageService, log: log}
}

type systemMessageInput struct {
	Body     string         `json:"body"`
	Metadata map[string]any `json:"metadata"`
}

// SendSystemMessage posts a sender-less message visible to both participants.
// POST /api/admin/conversations/:id/system-messages
func (h *AdminHandler) SendSystemMessage(c *fiber.Ctx) error {
	conversationID, err := httpx.ParamUint(c, "id")
	if err != nil {
		return httpx.BadRequest(c, "invalid_conversation_id", "Invalid conversation id")
	}

	var input systemMessageInput
	if err := c.BodyParser(&input); err != nil {
		return httpx.BadRequest(c, "invalid_request_body", "Invalid request body")
	}

	res, err := h.messageService.SendSystem(c.UserContext(), conversationID, input.Body, input.Metadata)
	if err != nil {
		return httpx.FromError(c, err)
	}

	if caller, ok := userCaller(c); ok {
		h.log.Info("system message sent",
			zap.Uint("admin_id", caller.UserID),
			zap.Uint("conversation_id", conversationID),
			zap.Uint("message_id", res.MessageID))
	}
	return c.Status(fiber.StatusCreated).JSON(res)
}
