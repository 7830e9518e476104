package repository

import (
	"context"
	"time"

	"github.com/gekymedia/gekychat-sub007/internal/models"
	"gorm.io/gorm"
)

type PendingMessageRepository struct {
	db *gorm.DB
}

func NewPendingMessageRepository(db *gorm.DB) *PendingMessageRepository {
	return &PendingMessageRepository{db: db}
}

// Enqueue adds an event to the pending queue for a user
func (r *PendingMessageRepository) Enqueue(ctx context.Context, userID, messageID uint, payload string, priority int) error {
	pending := &models.PendingMessage{
		UserID:    userID,
		MessageID: messageID,
		Payload:   payload,
		Priority:  priority,
	}
	return r.db.WithContext(ctx).Create(pending).Error
}

// GetPendingForUser retrieves queued events for a user, ordered by priority and creation time
func (r *PendingMessageRepository) GetPendingForUser(ctx context.Context, userID uint, limit int) ([]models.PendingMessage, error) {
	var pending []models.PendingMessage
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("priority DESC, created_at ASC, id ASC").
		Limit(limit).
		Find(&pending).Error
	return pending, err
}

// GetRetryable gets events ready for retry (next_retry <= now)
func (r *PendingMessageRepository) GetRetryable(ctx context.Context, limit int) ([]models.PendingMessage, error) {
	var pending []models.PendingMessage
	err := r.db.WithContext(ctx).Where("next_retry IS NOT NULL AND next_retry <= ?", time.Now()).
		Order("priority DESC, next_retry ASC").
		Limit(limit).
		Find(&pending).Error
	return pending, err
}

// MarkAttempted updates the attempt count and next retry time
func (r *PendingMessageRepository) MarkAttempted(ctx context.Context, id uint, attempts int, nextRetry *time.Time) error {
	updates := map[string]interface{}{
		"attempts":     attempts,
		"last_attempt": time.Now(),
		"next_retry":   nextRetry,
	}
	return r.db.WithContext(ctx).Model(&models.PendingMessage{}).Where("id = ?", id).Updates(updates).Error
}

func (r *PendingMessageRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.PendingMessage{}, id).Error
}

func (r *PendingMessageRepository) DeleteBatch(ctx context.Context, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Delete(&models.PendingMessage{}, ids).Error
}

// CleanupOld removes queued events older than the specified duration
func (r *PendingMessageRepository) CleanupOld(ctx context.Context, olderThan time.Duration) error {
	cutoff := time.Now().Add(-olderThan)
	return r.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.PendingMessage{}).Error
}
