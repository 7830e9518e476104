package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/gekymedia/gekychat-sub007/internal/models"
	"github.com/gekymedia/gekychat-sub007/internal/service"
	"go.uber.org/zap"
)

// ReceiptMarker advances a caller's delivery state for a message.
type ReceiptMarker interface {
	MarkDelivered(ctx context.Context, caller service.Caller, messageID uint) (bool, error)
	MarkRead(ctx context.Context, caller service.Caller, messageID uint) (bool, error)
}

// MembershipChecker fails unless userID participates in the conversation.
type MembershipChecker interface {
	RequireMember(ctx context.Context, conversationID, userID uint) (*models.Conversation, error)
}

// MessageContext provides all dependencies needed for message processing
type MessageContext struct {
	Ctx           context.Context
	Caller        service.Caller
	Client        *ClientConnection
	Hub           *Hub
	Receipts      ReceiptMarker
	Conversations MembershipChecker
	Log           *zap.Logger
}

// Message interface for all WebSocket message types
type Message interface {
	GetType() string
	Process(ctx *MessageContext) error
}

// SerializedMessage is the wire format wrapper
type SerializedMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ErrorResponse is sent when message processing fails
type ErrorResponse struct {
	Type    string `json:"type"`
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}

func ToJson(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

func FromJson(jsonBytes []byte, msg Message) error {
	if len(jsonBytes) == 0 || string(jsonBytes) == "null" {
		return nil
	}
	return json.Unmarshal(jsonBytes, msg)
}

func CreateMessage(msgType string, typeRegistry map[string]reflect.Type) (Message, error) {
	msgTypeReflect, ok := typeRegistry[msgType]
	if !ok {
		return nil, fmt.Errorf("unknown message type: %s", msgType)
	}

	instance := reflect.New(msgTypeReflect).Interface()
	return instance.(Message), nil
}

// SendError sends an error response to the client
func SendError(client *ClientConnection, code, message, details string) error {
	return client.WriteJSON(ErrorResponse{
		Type:    "error",
		Error:   message,
		Code:    code,
		Details: details,
	})
}
