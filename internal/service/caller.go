package service

import "github.com/gekymedia/gekychat-sub007/internal/models"

// Caller is the identity an operation runs as. It is always passed
// explicitly; nothing in this package reads it from ambient state.
type Caller struct {
	// UserID is the acting user. For platform callers it is the client's owner.
	UserID           uint
	PlatformClientID uint
	CanAutoCreate    bool
}

func UserCaller(u *models.User) Caller {
	return Caller{UserID: u.ID, CanAutoCreate: u.IsAdmin}
}

func PlatformCaller(c *models.PlatformClient) Caller {
	return Caller{
		UserID:           c.OwnerUserID,
		PlatformClientID: c.ID,
		CanAutoCreate:    c.CanAutoCreateUsers,
	}
}

func (c Caller) IsPlatform() bool {
	return c.PlatformClientID != 0
}
