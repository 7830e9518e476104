package models

import "time"

// PlatformClient is an API integration allowed to send messages on behalf of
// its owner. The secret is only ever stored as a SHA-256 hex digest.
type PlatformClient struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ClientID    string `gorm:"type:varchar(64);uniqueIndex;not null" json:"client_id"`
	SecretHash  string `gorm:"type:varchar(64);not null" json:"-"`
	Name        string `json:"name"`
	OwnerUserID uint   `gorm:"not null;index" json:"owner_user_id"`
	Owner       User   `gorm:"foreignKey:OwnerUserID" json:"-"`

	CanAutoCreateUsers bool       `gorm:"default:false" json:"can_auto_create_users"`
	RevokedAt          *time.Time `json:"-"`
}

func (c *PlatformClient) IsRevoked() bool {
	return c.RevokedAt != nil
}
