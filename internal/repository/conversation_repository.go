package repository

import (
	"context"
	"time"

	"github.com/gekymedia/gekychat-sub007/internal/models"
	"gorm.io/gorm"
)

type ConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// InsertIfAbsent creates the row for a canonical pair unless idx_conversation_pair
// already holds one. created=false with id=0 means another writer owns the pair
// and the caller should re-read it.
func (r *ConversationRepository) InsertIfAbsent(ctx context.Context, low, high, createdBy uint) (uint, bool, error) {
	var id uint
	res := r.db.WithContext(ctx).Raw(`
		INSERT INTO conversations (user_low_id, user_high_id, created_by, created_at, updated_at)
		VALUES (?, ?, ?, NOW(), NOW())
		ON CONFLICT (user_low_id, user_high_id) DO NOTHING
		RETURNING id
	`, low, high, createdBy).Scan(&id)
	if res.Error != nil {
		return 0, false, res.Error
	}
	return id, res.RowsAffected > 0 && id != 0, nil
}

func (r *ConversationRepository) FindByPair(ctx context.Context, low, high uint) (*models.Conversation, error) {
	var conv models.Conversation
	err := r.db.WithContext(ctx).
		Where("user_low_id = ? AND user_high_id = ?", low, high).
		First(&conv).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *ConversationRepository) FindByID(ctx context.Context, id uint) (*models.Conversation, error) {
	var conv models.Conversation
	if err := r.db.WithContext(ctx).First(&conv, id).Error; err != nil {
		return nil, err
	}
	return &conv, nil
}

// TouchLastMessage only ever moves the watermark forward; an older timestamp
// from a retried write is ignored.
func (r *ConversationRepository) TouchLastMessage(ctx context.Context, id uint, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE conversations
		SET last_message_at = ?, updated_at = NOW()
		WHERE id = ? AND (last_message_at IS NULL OR last_message_at < ?)
	`, at, id, at)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
