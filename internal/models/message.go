package models

import (
	"time"
)

type SenderType string

const (
	SenderUser     SenderType = "user"
	SenderPlatform SenderType = "platform"
	SenderSystem   SenderType = "system"
)

// RefScope is the namespace an ExternalRef is unique within.
type RefScope string

const (
	RefScopePlatform RefScope = "platform"
	RefScopeUser     RefScope = "user"
)

type Message struct {
	ID             uint `gorm:"primarykey" json:"id"`
	ConversationID uint `gorm:"not null;index:idx_messages_conversation,priority:1" json:"conversation_id"`

	// SenderID is nil for system-authored messages.
	SenderID   *uint      `gorm:"index;uniqueIndex:idx_sender_external_ref,priority:1,where:platform_client_id IS NULL" json:"sender_id"`
	SenderType SenderType `gorm:"type:varchar(20);not null;default:'user'" json:"sender_type"`

	Body        *string        `gorm:"type:text" json:"body"`
	Attachments []string       `gorm:"type:jsonb;serializer:json" json:"attachments,omitempty"`
	Metadata    map[string]any `gorm:"type:jsonb;serializer:json" json:"metadata,omitempty"`

	// Caller correlation. ExternalRef is unique per platform client, and per
	// sender among user-originated rows, so a retried send maps onto the
	// message it already created.
	PlatformClientID *uint   `gorm:"uniqueIndex:idx_platform_external_ref,priority:1" json:"platform_client_id,omitempty"`
	ExternalRef      *string `gorm:"type:varchar(191);uniqueIndex:idx_platform_external_ref,priority:2;uniqueIndex:idx_sender_external_ref,priority:2,where:platform_client_id IS NULL" json:"external_ref,omitempty"`

	CreatedAt time.Time  `gorm:"index:idx_messages_conversation,priority:2" json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	EditedAt  *time.Time `json:"edited_at,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	DeletedAt *time.Time `json:"-"`
}

type MessageResponse struct {
	ID               uint           `json:"id"`
	ConversationID   uint           `json:"conversation_id"`
	SenderID         *uint          `json:"sender_id"`
	SenderType       SenderType     `json:"sender_type"`
	Body             *string        `json:"body"`
	Attachments      []string       `json:"attachments,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	ExternalRef      *string        `json:"external_ref,omitempty"`
	PlatformClientID *uint          `json:"platform_client_id,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	EditedAt         *time.Time     `json:"edited_at,omitempty"`
	ExpiresAt        *time.Time     `json:"expires_at,omitempty"`
}

func (m *Message) ToResponse() MessageResponse {
	return MessageResponse{
		ID:               m.ID,
		ConversationID:   m.ConversationID,
		SenderID:         m.SenderID,
		SenderType:       m.SenderType,
		Body:             m.Body,
		Attachments:      m.Attachments,
		Metadata:         m.Metadata,
		ExternalRef:      m.ExternalRef,
		PlatformClientID: m.PlatformClientID,
		CreatedAt:        m.CreatedAt,
		EditedAt:         m.EditedAt,
		ExpiresAt:        m.ExpiresAt,
	}
}

// IsFrom reports whether userID authored the message.
func (m *Message) IsFrom(userID uint) bool {
	return m.SenderID != nil && *m.SenderID == userID
}

// IdempotencyKey returns the scope and owner ExternalRef is unique within.
// ok is false when the message has no ref or no owner (system messages).
func (m *Message) IdempotencyKey() (scope RefScope, ownerID uint, ok bool) {
	switch {
	case m.ExternalRef == nil:
		return "", 0, false
	case m.PlatformClientID != nil:
		return RefScopePlatform, *m.PlatformClientID, true
	case m.SenderID != nil:
		return RefScopeUser, *m.SenderID, true
	}
	return "", 0, false
}
