package realtime

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	EventMessageCreated = "message.created"
	EventMessageStatus  = "message.status"
)

const (
	conversationPrefix = "conversation."
	userPrefix         = "user."
)

// Event is the envelope published on every channel.
type Event struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Channel    string          `json:"channel"`
	Data       json.RawMessage `json:"data"`
	OccurredAt time.Time       `json:"occurred_at"`
}

func NewEvent(eventType, channel string, data any) (Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		Channel:    channel,
		Data:       raw,
		OccurredAt: time.Now().UTC(),
	}, nil
}

func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

func ConversationChannel(conversationID uint) string {
	return conversationPrefix + strconv.FormatUint(uint64(conversationID), 10)
}

func UserChannel(userID uint) string {
	return userPrefix + strconv.FormatUint(uint64(userID), 10)
}

// ParseUserChannel returns the user ID addressed by a user.<id> channel.
func ParseUserChannel(channel string) (uint, bool) {
	return parseChannel(channel, userPrefix)
}

// ParseConversationChannel returns the conversation ID of a conversation.<id> channel.
func ParseConversationChannel(channel string) (uint, bool) {
	return parseChannel(channel, conversationPrefix)
}

func parseChannel(channel, prefix string) (uint, bool) {
	if !strings.HasPrefix(channel, prefix) {
		return 0, false
	}
	id, err := strconv.ParseUint(channel[len(prefix):], 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
