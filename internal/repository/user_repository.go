package repository

import (
	"context"

	"github.com/gekymedia/gekychat-sub007/internal/models"
	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *UserRepository) FindByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).First(&user, id).Error
	return &user, err
}

func (r *UserRepository) FindByPhone(ctx context.Context, phone string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("phone = ?", phone).First(&user).Error
	return &user, err
}

// FindByPhoneSuffix matches the indexed last-nine-digit column, lowest ID first.
func (r *UserRepository) FindByPhoneSuffix(ctx context.Context, suffix string, limit int) ([]models.User, error) {
	if limit <= 0 {
		limit = 2
	}
	var users []models.User
	err := r.db.WithContext(ctx).
		Where("phone_suffix = ?", suffix).
		Order("id ASC").
		Limit(limit).
		Find(&users).Error
	return users, err
}
