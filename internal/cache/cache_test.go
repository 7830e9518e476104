package cache

import (
	"context"
	"testing"

	"github.com/gekymedia/gekychat-sub007/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestPairKeyIsOrderIndependent(t *testing.T) {
	assert.Equal(t, "conv:3:9", pairKey(9, 3))
	assert.Equal(t, pairKey(3, 9), pairKey(9, 3))
}

func TestCountsKey(t *testing.T) {
	assert.Equal(t, "receipts:direct_message:42", countsKey(models.SubjectDirectMessage, 42))
}

func TestNilCachesAreNoOps(t *testing.T) {
	ctx := context.Background()

	var mc *MessageCache
	_, ok := mc.GetConversationID(ctx, 1, 2)
	assert.False(t, ok)
	assert.NoError(t, mc.SetConversationID(ctx, 1, 2, 5))
	_, ok = mc.GetStatusCounts(ctx, models.SubjectDirectMessage, 1)
	assert.False(t, ok)
	assert.NoError(t, mc.SetStatusCounts(ctx, models.SubjectDirectMessage, models.StatusCounts{MessageID: 1}))
	assert.NoError(t, mc.InvalidateStatusCounts(ctx, models.SubjectDirectMessage, 1))

	uc := NewUserCache(nil)
	_, ok = uc.GetUserIDByPhone(ctx, "+233241234567")
	assert.False(t, ok)
	assert.NoError(t, uc.SetUserIDByPhone(ctx, "+233241234567", 1))
	assert.NoError(t, uc.SetUserOnline(ctx, 1))
	assert.False(t, uc.IsUserOnline(ctx, 1))
	assert.NoError(t, uc.RefreshUserOnline(ctx, 1))
	assert.NoError(t, uc.SetUserOffline(ctx, 1))
	n, err := uc.GetOnlineCount(ctx)
	assert.NoError(t, err)
	assert.Zero(t, n)
}
