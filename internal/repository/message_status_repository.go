package repository

import (
	"context"
	"time"

	"github.com/gekymedia/gekychat-sub007/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MessageStatusRepository struct {
	db *gorm.DB
}

func NewMessageStatusRepository(db *gorm.DB) *MessageStatusRepository {
	return &MessageStatusRepository{db: db}
}

func (r *MessageStatusRepository) SeedPending(ctx context.Context, kind models.SubjectKind, messageID uint, userIDs []uint) error {
	if len(userIDs) == 0 {
		return nil
	}
	rows := make([]models.MessageStatus, 0, len(userIDs))
	for _, uid := range userIDs {
		rows = append(rows, models.MessageStatus{
			SubjectKind: kind,
			MessageID:   messageID,
			UserID:      uid,
			State:       models.StatePending,
		})
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows).Error
}

// Advance raises the state of (kind, messageID, userID) to at least state,
// creating the row if it was never seeded. Timestamps are first-write-wins,
// and reaching read also stamps delivered_at. The WHERE on the conflict branch
// makes the statement return no row when nothing moved.
func (r *MessageStatusRepository) Advance(ctx context.Context, kind models.SubjectKind, messageID, userID uint, state models.DeliveryState, at time.Time) (bool, error) {
	deliveredAt := &at
	var readAt *time.Time
	if state >= models.StateRead {
		readAt = &at
	}

	var returned []int16
	res := r.db.WithContext(ctx).Raw(`
		INSERT INTO message_statuses (subject_kind, message_id, user_id, state, delivered_at, read_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, NOW(), NOW())
		ON CONFLICT (subject_kind, message_id, user_id) DO UPDATE
		SET state = GREATEST(message_statuses.state, EXCLUDED.state),
			delivered_at = COALESCE(message_statuses.delivered_at, EXCLUDED.delivered_at),
			read_at = COALESCE(message_statuses.read_at, EXCLUDED.read_at),
			updated_at = NOW()
		WHERE message_statuses.state < EXCLUDED.state
		RETURNING state
	`, string(kind), messageID, userID, int16(state), deliveredAt, readAt).Scan(&returned)
	if res.Error != nil {
		return false, res.Error
	}
	return len(returned) > 0, nil
}

// MarkDeleted hides the message for userID only; state is left untouched.
func (r *MessageStatusRepository) MarkDeleted(ctx context.Context, kind models.SubjectKind, messageID, userID uint, at time.Time) (bool, error) {
	var returned []uint
	res := r.db.WithContext(ctx).Raw(`
		INSERT INTO message_statuses (subject_kind, message_id, user_id, state, deleted_at, created_at, updated_at)
		VALUES (?, ?, ?, 0, ?, NOW(), NOW())
		ON CONFLICT (subject_kind, message_id, user_id) DO UPDATE
		SET deleted_at = EXCLUDED.deleted_at,
			updated_at = NOW()
		WHERE message_statuses.deleted_at IS NULL
		RETURNING user_id
	`, string(kind), messageID, userID, at).Scan(&returned)
	if res.Error != nil {
		return false, res.Error
	}
	return len(returned) > 0, nil
}

func (r *MessageStatusRepository) Find(ctx context.Context, kind models.SubjectKind, messageID, userID uint) (*models.MessageStatus, error) {
	var status models.MessageStatus
	err := r.db.WithContext(ctx).
		Where("subject_kind = ? AND message_id = ? AND user_id = ?", string(kind), messageID, userID).
		First(&status).Error
	if err != nil {
		return nil, err
	}
	return &status, nil
}

// Tally counts delivered/read rows and reports the sender's own row
// separately so callers can exclude it. senderID 0 matches no row.
func (r *MessageStatusRepository) Tally(ctx context.Context, kind models.SubjectKind, messageID, senderID uint) (StatusTally, error) {
	var tally StatusTally
	err := r.db.WithContext(ctx).Raw(`
		SELECT
			COUNT(*) FILTER (WHERE state >= 1) AS delivered_total,
			COUNT(*) FILTER (WHERE state >= 2) AS read_total,
			COALESCE(BOOL_OR(user_id = ? AND state >= 1), false) AS sender_delivered,
			COALESCE(BOOL_OR(user_id = ? AND state >= 2), false) AS sender_read
		FROM message_statuses
		WHERE subject_kind = ? AND message_id = ?
	`, senderID, senderID, string(kind), messageID).Scan(&tally).Error
	return tally, err
}
