package repository

import (
	"github.com/gekymedia/gekychat-sub007/internal/config"
	"github.com/gekymedia/gekychat-sub007/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func InitDB(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		// Unique violations come back as gorm.ErrDuplicatedKey.
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxOpenConns / 2)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.PlatformClient{},
		&models.Conversation{},
		&models.Message{},
		&models.MessageStatus{},
		&models.PendingMessage{},
	); err != nil {
		return nil, err
	}

	return db, nil
}
