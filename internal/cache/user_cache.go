package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

const (
	OnlineUsersTTL = 90 * time.Second // Match pong timeout
	PhoneLookupTTL = 10 * time.Minute
)

const onlineUsersKey = "online:users"

// UserCache handles user-related caching
type UserCache struct {
	redis *RedisCache
}

// NewUserCache creates a new user cache
func NewUserCache(redis *RedisCache) *UserCache {
	return &UserCache{redis: redis}
}

func phoneKey(phone string) string {
	return "phone:" + phone
}

// GetUserIDByPhone returns the cached user ID for a normalized phone.
func (uc *UserCache) GetUserIDByPhone(ctx context.Context, phone string) (uint, bool) {
	if uc == nil || uc.redis == nil {
		return 0, false
	}
	data, err := uc.redis.Get(ctx, phoneKey(phone))
	if err != nil || data == nil {
		return 0, false
	}
	var id uint
	if err := msgpack.Unmarshal(data, &id); err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// SetUserIDByPhone caches a phone lookup. Only exact normalized matches are cached.
func (uc *UserCache) SetUserIDByPhone(ctx context.Context, phone string, userID uint) error {
	if uc == nil || uc.redis == nil {
		return nil
	}
	data, err := msgpack.Marshal(userID)
	if err != nil {
		return err
	}
	return uc.redis.Set(ctx, phoneKey(phone), data, PhoneLookupTTL)
}

// SetUserOnline adds a user to the online users set
func (uc *UserCache) SetUserOnline(ctx context.Context, userID uint) error {
	if uc == nil || uc.redis == nil {
		return nil
	}
	if err := uc.redis.SetAdd(ctx, onlineUsersKey, userID); err != nil {
		return err
	}

	// Individual key expires on its own if the socket dies without a close
	return uc.redis.Set(ctx, fmt.Sprintf("online:%d", userID), []byte("1"), OnlineUsersTTL)
}

// SetUserOffline removes a user from the online users set
func (uc *UserCache) SetUserOffline(ctx context.Context, userID uint) error {
	if uc == nil || uc.redis == nil {
		return nil
	}
	if err := uc.redis.SetRemove(ctx, onlineUsersKey, userID); err != nil {
		return err
	}
	return uc.redis.Delete(ctx, fmt.Sprintf("online:%d", userID))
}

// IsUserOnline checks if a user is online
func (uc *UserCache) IsUserOnline(ctx context.Context, userID uint) bool {
	if uc == nil || uc.redis == nil {
		return false
	}
	return uc.redis.Exists(ctx, fmt.Sprintf("online:%d", userID))
}

// GetOnlineCount returns the number of online users
func (uc *UserCache) GetOnlineCount(ctx context.Context) (int64, error) {
	if uc == nil || uc.redis == nil {
		return 0, nil
	}
	return uc.redis.SetCard(ctx, onlineUsersKey)
}

// RefreshUserOnline extends the TTL for an online user
func (uc *UserCache) RefreshUserOnline(ctx context.Context, userID uint) error {
	if uc == nil || uc.redis == nil {
		return nil
	}
	return uc.redis.Set(ctx, fmt.Sprintf("online:%d", userID), []byte("1"), OnlineUsersTTL)
}
