package ws

import (
	"errors"

	"github.com/gekymedia/gekychat-sub007/internal/apperr"
	"go.uber.org/zap"
)

// Ack confirms a processed client frame.
type Ack struct {
	Type           string `json:"type"`
	For            string `json:"for"`
	MessageID      uint   `json:"message_id,omitempty"`
	ConversationID uint   `json:"conversation_id,omitempty"`
	Changed        bool   `json:"changed"`
}

// MessageSubscribe asks for conversation.<id> events on this connection.
type MessageSubscribe struct {
	ConversationID uint `json:"conversation_id"`
}

func (msg *MessageSubscribe) GetType() string {
	return "subscribe"
}

func (msg *MessageSubscribe) Process(ctx *MessageContext) error {
	if msg.ConversationID == 0 {
		return SendError(ctx.Client, string(apperr.CodeValidation), "conversation_id is required", "")
	}
	if _, err := ctx.Conversations.RequireMember(ctx.Ctx, msg.ConversationID, ctx.Caller.UserID); err != nil {
		return sendAppError(ctx, err)
	}
	ctx.Hub.Subscribe(ctx.Caller.UserID, msg.ConversationID)
	return ctx.Client.WriteJSON(Ack{Type: "ack", For: msg.GetType(), ConversationID: msg.ConversationID, Changed: true})
}

// MessageDelivered reports that a message reached the client.
type MessageDelivered struct {
	MessageID uint `json:"message_id"`
}

func (msg *MessageDelivered) GetType() string {
	return "delivered"
}

func (msg *MessageDelivered) Process(ctx *MessageContext) error {
	if msg.MessageID == 0 {
		return SendError(ctx.Client, string(apperr.CodeValidation), "message_id is required", "")
	}
	changed, err := ctx.Receipts.MarkDelivered(ctx.Ctx, ctx.Caller, msg.MessageID)
	if err != nil {
		return sendAppError(ctx, err)
	}
	return ctx.Client.WriteJSON(Ack{Type: "ack", For: msg.GetType(), MessageID: msg.MessageID, Changed: changed})
}

// MessageRead reports that the user has seen a message.
type MessageRead struct {
	MessageID uint `json:"message_id"`
}

func (msg *MessageRead) GetType() string {
	return "read"
}

func (msg *MessageRead) Process(ctx *MessageContext) error {
	if msg.MessageID == 0 {
		return SendError(ctx.Client, string(apperr.CodeValidation), "message_id is required", "")
	}
	changed, err := ctx.Receipts.MarkRead(ctx.Ctx, ctx.Caller, msg.MessageID)
	if err != nil {
		return sendAppError(ctx, err)
	}
	return ctx.Client.WriteJSON(Ack{Type: "ack", For: msg.GetType(), MessageID: msg.MessageID, Changed: changed})
}

func sendAppError(ctx *MessageContext, err error) error {
	var appErr *apperr.AppError
	if errors.As(err, &appErr) && appErr.Kind != apperr.KindInternal {
		return SendError(ctx.Client, string(appErr.Code), appErr.Message, "")
	}
	if ctx.Log != nil {
		ctx.Log.Error("websocket frame failed", zap.Uint("user_id", ctx.Caller.UserID), zap.Error(err))
	}
	return SendError(ctx.Client, string(apperr.CodeInternal), "Internal server error", "")
}
