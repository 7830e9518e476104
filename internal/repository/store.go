package repository

import (
	"context"

	"gorm.io/gorm"
)

type GormStore struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Users() UserRepositoryInterface {
	return NewUserRepository(s.db)
}

func (s *GormStore) PlatformClients() PlatformClientRepositoryInterface {
	return NewPlatformClientRepository(s.db)
}

func (s *GormStore) Conversations() ConversationRepositoryInterface {
	return NewConversationRepository(s.db)
}

func (s *GormStore) Messages() MessageRepositoryInterface {
	return NewMessageRepository(s.db)
}

func (s *GormStore) Statuses() MessageStatusRepositoryInterface {
	return NewMessageStatusRepository(s.db)
}

func (s *GormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}
