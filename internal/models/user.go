package models

import (
	"time"

	"github.com/gekymedia/gekychat-sub007/internal/validation"
	"gorm.io/gorm"
)

type User struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Phone is stored normalized (E.164-like). PhoneSuffix holds its last nine
	// digits so legacy-format lookups are an indexed equality match.
	Phone         string `gorm:"uniqueIndex;not null" json:"phone"`
	PhoneSuffix   string `gorm:"type:varchar(9);index;not null" json:"-"`
	PhoneVerified bool   `gorm:"default:false" json:"phone_verified"`

	DisplayName  string `json:"display_name"`
	PasswordHash string `gorm:"not null" json:"-"`

	IsAdmin     bool `gorm:"default:false" json:"is_admin"`
	IsBanned    bool `gorm:"default:false" json:"-"`
	IsDeveloper bool `gorm:"default:false" json:"is_developer"`
}

func (u *User) BeforeSave(tx *gorm.DB) error {
	u.PhoneSuffix = validation.PhoneSuffix(u.Phone)
	return nil
}

type UserResponse struct {
	ID          uint   `json:"id"`
	Phone       string `json:"phone"`
	DisplayName string `json:"display_name"`
}

func (u *User) ToResponse() UserResponse {
	return UserResponse{
		ID:          u.ID,
		Phone:       u.Phone,
		DisplayName: u.DisplayName,
	}
}
