package handlers

import (
	"github.com/gekymedia/gekychat-sub007/internal/httpx"
	"github.com/gekymedia/gekychat-sub007/internal/service"
	"github.com/gofiber/fiber/v2"
)

type ConversationHandler struct {
	conversationService *service.ConversationService
}

func NewConversationHandler(conversationService *service.ConversationService) *ConversationHandler {
	return &ConversationHandler{conversationService: conversationService}
}

// WithUser finds or creates the direct conversation between the caller and
// :user_id.
// GET /api/conversations/with/:user_id
func (h *ConversationHandler) WithUser(c *fiber.Ctx) error {
	caller, ok := userCaller(c)
	if !ok {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	otherID, err := httpx.ParamUint(c, "user_id")
	if err != nil {
		return httpx.BadRequest(c, "invalid_user_id", "Invalid user id")
	}

	conv, created, err := h.conversationService.FindOrCreateDirect(c.UserContext(), caller.UserID, otherID, caller.UserID)
	if err != nil {
		return httpx.FromError(c, err)
	}

	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(fiber.Map{
		"conversation_id": conv.ID,
		"created":         created,
		"conversation":    conv.ToResponse(),
	})
}

// GET /api/conversations/:id
func (h *ConversationHandler) GetConversation(c *fiber.Ctx) error {
	caller, ok := userCaller(c)
	if !ok {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	conversationID, err := httpx.ParamUint(c, "id")
	if err != nil {
		return httpx.BadRequest(c, "invalid_conversation_id", "Invalid conversation id")
	}

	conv, err := h.conversationService.RequireMember(c.UserContext(), conversationID, caller.UserID)
	if err != nil {
		return httpx.FromError(c, err)
	}
	return c.JSON(conv.ToResponse())
}
