package handlers

import (
	"context"

	"github.com/gekymedia/gekychat-sub007/internal/httpx"
	"github.com/gekymedia/gekychat-sub007/internal/service"
	"github.com/gofiber/fiber/v2"
)

type MessageHandler struct {
	messageService *service.MessageService
}

func NewMessageHandler(messageService *service.MessageService) *MessageHandler {
	return &MessageHandler{messageService: messageService}
}

func sendStatus(res *service.SendResult) int {
	if res.Duplicate {
		return fiber.StatusOK
	}
	return fiber.StatusCreated
}

// SendToPhone resolves the recipient by phone number and posts into the
// direct conversation between caller and recipient.
// POST /api/messages/send-to-phone
func (h *MessageHandler) SendToPhone(c *fiber.Ctx) error {
	caller, ok := userCaller(c)
	if !ok {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
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

// SendToConversation posts as the authenticated user.
// POST /api/conversations/:id/messages
func (h *MessageHandler) SendToConversation(c *fiber.Ctx) error {
	caller, ok := userCaller(c)
	if !ok {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	conversationID, err := httpx.ParamUint(c, "id")
	if err != nil {
		return httpx.BadRequest(c, "invalid_conversation_id", "Invalid conversation id")
	}

	var input service.SendInput
	if err := c.BodyParser(&input); err != nil {
		return httpx.BadRequest(c, "invalid_request_body", "Invalid request body")
	}

	res, err := h.messageService.SendFromUser(c.UserContext(), caller, conversationID, input)
	if err != nil {
		return httpx.FromError(c, err)
	}
	return c.Status(sendStatus(res)).JSON(res)
}

// GET /api/messages/:id
func (h *MessageHandler) GetMessage(c *fiber.Ctx) error {
	caller, ok := userCaller(c)
	if !ok {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	messageID, err := httpx.ParamUint(c, "id")
	if err != nil {
		return httpx.BadRequest(c, "invalid_message_id", "Invalid message id")
	}

	m, err := h.messageService.Get(c.UserContext(), caller, messageID)
	if err != nil {
		return httpx.FromError(c, err)
	}
	return c.JSON(m.ToResponse())
}

// MarkRead always answers 200 for a visible message; changed is false on repeats.
// POST /api/messages/:id/read
func (h *MessageHandler) MarkRead(c *fiber.Ctx) error {
	return h.mark(c, h.messageService.MarkRead)
}

// POST /api/messages/:id/delivered
func (h *MessageHandler) MarkDelivered(c *fiber.Ctx) error {
	return h.mark(c, h.messageService.MarkDelivered)
}

type markFunc func(ctx context.Context, caller service.Caller, messageID uint) (bool, error)

func (h *MessageHandler) mark(c *fiber.Ctx, fn markFunc) error {
	caller, ok := userCaller(c)
	if !ok {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	messageID, err := httpx.ParamUint(c, "id")
	if err != nil {
		return httpx.BadRequest(c, "invalid_message_id", "Invalid message id")
	}

	changed, err := fn(c.UserContext(), caller, messageID)
	if err != nil {
		return httpx.FromError(c, err)
	}
	return c.JSON(fiber.Map{
		"message_id": messageID,
		"changed":    changed,
	})
}

// DeleteMessage hides the message for the caller only.
// DELETE /api/messages/:id
func (h *MessageHandler) DeleteMessage(c *fiber.Ctx) error {
	caller, ok := userCaller(c)
	if !ok {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	messageID, err := httpx.ParamUint(c, "id")
	if err != nil {
		return httpx.BadRequest(c, "invalid_message_id", "Invalid message id")
	}

	if err := h.messageService.DeleteForUser(c.UserContext(), caller, messageID); err != nil {
		return httpx.FromError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Receipts returns delivery and read counts, excluding the sender.
// GET /api/messages/:id/receipts
func (h *MessageHandler) Receipts(c *fiber.Ctx) error {
	caller, ok := userCaller(c)
	if !ok {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	messageID, err := httpx.ParamUint(c, "id")
	if err != nil {
		return httpx.BadRequest(c, "invalid_message_id", "Invalid message id")
	}

	counts, err := h.messageService.Receipts(c.UserContext(), caller, messageID)
	if err != nil {
		return httpx.FromError(c, err)
	}
	return c.JSON(counts)
}
