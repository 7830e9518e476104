package repository

import (
	"context"

	"github.com/gekymedia/gekychat-sub007/internal/models"
	"gorm.io/gorm"
)

type PlatformClientRepository struct {
	db *gorm.DB
}

func NewPlatformClientRepository(db *gorm.DB) *PlatformClientRepository {
	return &PlatformClientRepository{db: db}
}

func (r *PlatformClientRepository) Create(ctx context.Context, client *models.PlatformClient) error {
	return r.db.WithContext(ctx).Create(client).Error
}

func (r *PlatformClientRepository) FindByClientID(ctx context.Context, clientID string) (*models.PlatformClient, error) {
	var client models.PlatformClient
	err := r.db.WithContext(ctx).Preload("Owner").Where("client_id = ?", clientID).First(&client).Error
	return &client, err
}
