package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/gekymedia/gekychat-sub007/internal/models"
	"github.com/vmihailenco/msgpack/v5"
)

// TTL constants for different cache types
const (
	ConversationPairTTL = 10 * time.Minute
	StatusCountsTTL     = 30 * time.Second
)

// MessageCache caches conversation lookups and receipt aggregates. A nil
// MessageCache, or one without Redis, is a no-op.
type MessageCache struct {
	redis *RedisCache
}

// NewMessageCache creates a new message cache
func NewMessageCache(redis *RedisCache) *MessageCache {
	return &MessageCache{redis: redis}
}

// pairKey always puts the smaller ID first.
func pairKey(userID1, userID2 uint) string {
	if userID1 > userID2 {
		userID1, userID2 = userID2, userID1
	}
	return fmt.Sprintf("conv:%d:%d", userID1, userID2)
}

func countsKey(kind models.SubjectKind, messageID uint) string {
	return fmt.Sprintf("receipts:%s:%d", kind, messageID)
}

// GetConversationID returns the cached conversation ID for a pair of users.
func (mc *MessageCache) GetConversationID(ctx context.Context, userID1, userID2 uint) (uint, bool) {
	if mc == nil || mc.redis == nil {
		return 0, false
	}
	data, err := mc.redis.Get(ctx, pairKey(userID1, userID2))
	if err != nil || data == nil {
		return 0, false
	}
	var id uint
	if err := msgpack.Unmarshal(data, &id); err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// SetConversationID caches the conversation for a pair. Pairs never move to a
// different conversation, so no invalidation is needed.
func (mc *MessageCache) SetConversationID(ctx context.Context, userID1, userID2, conversationID uint) error {
	if mc == nil || mc.redis == nil {
		return nil
	}
	data, err := msgpack.Marshal(conversationID)
	if err != nil {
		return err
	}
	return mc.redis.Set(ctx, pairKey(userID1, userID2), data, ConversationPairTTL)
}

// GetStatusCounts retrieves cached receipt counts for a message.
func (mc *MessageCache) GetStatusCounts(ctx context.Context, kind models.SubjectKind, messageID uint) (*models.StatusCounts, bool) {
	if mc == nil || mc.redis == nil {
		return nil, false
	}
	data, err := mc.redis.Get(ctx, countsKey(kind, messageID))
	if err != nil || data == nil {
		return nil, false
	}
	var counts models.StatusCounts
	if err := msgpack.Unmarshal(data, &counts); err != nil {
		return nil, false
	}
	return &counts, true
}

// SetStatusCounts caches receipt counts for a message
func (mc *MessageCache) SetStatusCounts(ctx context.Context, kind models.SubjectKind, counts models.StatusCounts) error {
	if mc == nil || mc.redis == nil {
		return nil
	}
	data, err := msgpack.Marshal(counts)
	if err != nil {
		return err
	}
	return mc.redis.Set(ctx, countsKey(kind, counts.MessageID), data, StatusCountsTTL)
}

// InvalidateStatusCounts drops cached counts after a status transition.
func (mc *MessageCache) InvalidateStatusCounts(ctx context.Context, kind models.SubjectKind, messageID uint) error {
	if mc == nil || mc.redis == nil {
		return nil
	}
	return mc.redis.Delete(ctx, countsKey(kind, messageID))
}
