package models

import (
	"time"
)

// PendingMessage is a real-time event queued for a user who was offline when
// it was published.
type PendingMessage struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID uint `gorm:"not null;index:idx_pending_user_priority" json:"user_id"`

	// Zero for events not tied to a stored message.
	MessageID uint `gorm:"not null;default:0;index" json:"message_id"`

	Attempts    int        `gorm:"default:0" json:"attempts"`
	LastAttempt *time.Time `json:"last_attempt"`
	NextRetry   *time.Time `gorm:"index" json:"next_retry"`

	Priority int `gorm:"default:0;index:idx_pending_user_priority" json:"priority"`

	// Serialized event, so delivery needs no joins.
	Payload string `gorm:"type:text" json:"payload"`
}
