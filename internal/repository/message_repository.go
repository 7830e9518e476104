package repository

import (
	"context"

	"github.com/gekymedia/gekychat-sub007/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Create(ctx context.Context, message *models.Message) error {
	return r.db.WithContext(ctx).Create(message).Error
}

func (r *MessageRepository) CreateIdempotent(ctx context.Context, message *models.Message) (*models.Message, bool, error) {
	scope, owner, ok := message.IdempotencyKey()
	if !ok {
		if err := r.Create(ctx, message); err != nil {
			return nil, false, err
		}
		return message, true, nil
	}

	onConflict := clause.OnConflict{
		Columns:   []clause.Column{{Name: "platform_client_id"}, {Name: "external_ref"}},
		DoNothing: true,
	}
	if scope == models.RefScopeUser {
		onConflict.Columns = []clause.Column{{Name: "sender_id"}, {Name: "external_ref"}}
		onConflict.TargetWhere = clause.Where{Exprs: []clause.Expression{clause.Expr{SQL: "platform_client_id IS NULL"}}}
	}

	res := r.db.WithContext(ctx).Clauses(onConflict).Create(message)
	if res.Error != nil && !IsDuplicate(res.Error) {
		return nil, false, res.Error
	}
	if res.Error == nil && res.RowsAffected > 0 {
		return message, true, nil
	}

	existing, err := r.FindByExternalRef(ctx, scope, owner, *message.ExternalRef)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *MessageRepository) FindByID(ctx context.Context, id uint) (*models.Message, error) {
	var message models.Message
	if err := r.db.WithContext(ctx).Where("deleted_at IS NULL").First(&message, id).Error; err != nil {
		return nil, err
	}
	return &message, nil
}

func (r *MessageRepository) FindByExternalRef(ctx context.Context, scope models.RefScope, ownerID uint, externalRef string) (*models.Message, error) {
	q := r.db.WithContext(ctx)
	if scope == models.RefScopeUser {
		q = q.Where("sender_id = ? AND external_ref = ? AND platform_client_id IS NULL", ownerID, externalRef)
	} else {
		q = q.Where("platform_client_id = ? AND external_ref = ?", ownerID, externalRef)
	}

	var message models.Message
	if err := q.First(&message).Error; err != nil {
		return nil, err
	}
	return &message, nil
}
