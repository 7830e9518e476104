package models

import "time"

// Conversation is a direct conversation between exactly two users. The pair is
// stored canonically (UserLowID < UserHighID) under a unique index, so there is
// at most one row per unordered pair.
type Conversation struct {
	ID            uint       `gorm:"primarykey" json:"id"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	UserLowID     uint       `gorm:"not null;uniqueIndex:idx_conversation_pair,priority:1" json:"user_low_id"`
	UserHighID    uint       `gorm:"not null;uniqueIndex:idx_conversation_pair,priority:2;index;check:chk_conversation_pair_order,user_low_id < user_high_id" json:"user_high_id"`
	CreatedBy     uint       `gorm:"not null" json:"created_by"`
	LastMessageAt *time.Time `gorm:"index" json:"last_message_at"`
}

// CanonicalPair orders two user IDs ascending.
func CanonicalPair(a, b uint) (uint, uint) {
	if a > b {
		return b, a
	}
	return a, b
}

func (c *Conversation) Participants() []uint {
	return []uint{c.UserLowID, c.UserHighID}
}

func (c *Conversation) HasMember(userID uint) bool {
	return userID != 0 && (c.UserLowID == userID || c.UserHighID == userID)
}

// Other returns the participant that is not userID. userID must be a member.
func (c *Conversation) Other(userID uint) uint {
	if c.UserLowID == userID {
		return c.UserHighID
	}
	return c.UserLowID
}

type ConversationResponse struct {
	ID            uint       `json:"conversation_id"`
	Participants  []uint     `json:"participants"`
	LastMessageAt *time.Time `json:"last_message_at"`
	CreatedAt     time.Time  `json:"created_at"`
}

func (c *Conversation) ToResponse() ConversationResponse {
	return ConversationResponse{
		ID:            c.ID,
		Participants:  c.Participants(),
		LastMessageAt: c.LastMessageAt,
		CreatedAt:     c.CreatedAt,
	}
}
