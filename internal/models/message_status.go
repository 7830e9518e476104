package models

import "time"

// SubjectKind discriminates which kind of message-like entity a status row
// belongs to. Callers always pass it explicitly.
type SubjectKind string

const (
	SubjectDirectMessage SubjectKind = "direct_message"
)

// DeliveryState is ordered: a transition only ever raises it.
type DeliveryState int16

const (
	StatePending   DeliveryState = 0
	StateDelivered DeliveryState = 1
	StateRead      DeliveryState = 2
)

func (s DeliveryState) String() string {
	switch s {
	case StateDelivered:
		return "delivered"
	case StateRead:
		return "read"
	default:
		return "pending"
	}
}

func (s DeliveryState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// MessageStatus is the per-recipient delivery record for one message.
type MessageStatus struct {
	SubjectKind SubjectKind   `gorm:"type:varchar(32);primaryKey" json:"subject_kind"`
	MessageID   uint          `gorm:"primaryKey;index" json:"message_id"`
	UserID      uint          `gorm:"primaryKey;index" json:"user_id"`
	State       DeliveryState `gorm:"type:smallint;not null;default:0" json:"state"`
	DeliveredAt *time.Time    `json:"delivered_at"`
	ReadAt      *time.Time    `json:"read_at"`
	DeletedAt   *time.Time    `json:"deleted_at"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

func (MessageStatus) TableName() string {
	return "message_statuses"
}

func (s *MessageStatus) IsDeleted() bool {
	return s.DeletedAt != nil
}

// StatusCounts is the aggregate view of a message's recipients, excluding the
// sender's own row.
type StatusCounts struct {
	MessageID      uint  `json:"message_id"`
	DeliveredCount int64 `json:"delivered_count"`
	ReadCount      int64 `json:"read_count"`
}
