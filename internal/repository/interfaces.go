package repository

import (
	"context"
	"time"

	"github.com/gekymedia/gekychat-sub007/internal/models"
)

// UserRepositoryInterface defines the contract for user repository operations
type UserRepositoryInterface interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id uint) (*models.User, error)
	FindByPhone(ctx context.Context, phone string) (*models.User, error)
	FindByPhoneSuffix(ctx context.Context, suffix string, limit int) ([]models.User, error)
}

// PlatformClientRepositoryInterface defines the contract for API client lookups
type PlatformClientRepositoryInterface interface {
	Create(ctx context.Context, client *models.PlatformClient) error
	FindByClientID(ctx context.Context, clientID string) (*models.PlatformClient, error)
}

// ConversationRepositoryInterface defines the contract for direct conversations.
// low/high are a canonical pair (low < high).
type ConversationRepositoryInterface interface {
	InsertIfAbsent(ctx context.Context, low, high, createdBy uint) (id uint, created bool, err error)
	FindByPair(ctx context.Context, low, high uint) (*models.Conversation, error)
	FindByID(ctx context.Context, id uint) (*models.Conversation, error)
	TouchLastMessage(ctx context.Context, id uint, at time.Time) (bool, error)
}

// MessageRepositoryInterface defines the contract for message repository operations
type MessageRepositoryInterface interface {
	Create(ctx context.Context, message *models.Message) error
	// CreateIdempotent inserts message unless a row with the same
	// external_ref exists in its scope (see Message.IdempotencyKey), in which
	// case that row is returned with created=false.
	CreateIdempotent(ctx context.Context, message *models.Message) (stored *models.Message, created bool, err error)
	FindByID(ctx context.Context, id uint) (*models.Message, error)
	FindByExternalRef(ctx context.Context, scope models.RefScope, ownerID uint, externalRef string) (*models.Message, error)
}

// StatusTally is the raw per-message aggregate before sender exclusion.
type StatusTally struct {
	DeliveredTotal  int64 `gorm:"column:delivered_total"`
	ReadTotal       int64 `gorm:"column:read_total"`
	SenderDelivered bool  `gorm:"column:sender_delivered"`
	SenderRead      bool  `gorm:"column:sender_read"`
}

// MessageStatusRepositoryInterface defines the per-recipient status contract.
// Every write is a single upsert; none of them can lower a state.
type MessageStatusRepositoryInterface interface {
	SeedPending(ctx context.Context, kind models.SubjectKind, messageID uint, userIDs []uint) error
	Advance(ctx context.Context, kind models.SubjectKind, messageID, userID uint, state models.DeliveryState, at time.Time) (changed bool, err error)
	MarkDeleted(ctx context.Context, kind models.SubjectKind, messageID, userID uint, at time.Time) (changed bool, err error)
	Find(ctx context.Context, kind models.SubjectKind, messageID, userID uint) (*models.MessageStatus, error)
	Tally(ctx context.Context, kind models.SubjectKind, messageID, senderID uint) (StatusTally, error)
}

// PendingMessageRepositoryInterface defines the contract for pending message queue operations
type PendingMessageRepositoryInterface interface {
	Enqueue(ctx context.Context, userID, messageID uint, payload string, priority int) error
	GetPendingForUser(ctx context.Context, userID uint, limit int) ([]models.PendingMessage, error)
	GetRetryable(ctx context.Context, limit int) ([]models.PendingMessage, error)
	MarkAttempted(ctx context.Context, id uint, attempts int, nextRetry *time.Time) error
	Delete(ctx context.Context, id uint) error
	DeleteBatch(ctx context.Context, ids []uint) error
	CleanupOld(ctx context.Context, olderThan time.Duration) error
}

// Store groups the repositories that take part in one unit of work.
type Store interface {
	Users() UserRepositoryInterface
	PlatformClients() PlatformClientRepositoryInterface
	Conversations() ConversationRepositoryInterface
	Messages() MessageRepositoryInterface
	Statuses() MessageStatusRepositoryInterface
	// Transaction runs fn against a Store bound to one database transaction.
	Transaction(ctx context.Context, fn func(tx Store) error) error
}
