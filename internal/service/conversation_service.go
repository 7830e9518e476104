package service

import (
	"context"
	"time"

	"github.com/gekymedia/gekychat-sub007/internal/apperr"
	"github.com/gekymedia/gekychat-sub007/internal/cache"
	"github.com/gekymedia/gekychat-sub007/internal/models"
	"github.com/gekymedia/gekychat-sub007/internal/repository"
	"go.uber.org/zap"
)

// ConversationService keeps exactly one direct conversation per unordered
// pair of users. The unique pair index is the source of truth; a lost insert
// race is resolved by reading the winner.
type ConversationService struct {
	store   repository.Store
	cache   *cache.MessageCache
	retries int
	log     *zap.Logger
}

func NewConversationService(store repository.Store, mc *cache.MessageCache, retries int, log *zap.Logger) *ConversationService {
	return &ConversationService{store: store, cache: mc, retries: retries, log: log}
}

// FindOrCreateDirect returns the conversation between userA and userB,
// creating it if needed. Argument order does not matter.
func (s *ConversationService) FindOrCreateDirect(ctx context.Context, userA, userB, createdBy uint) (*models.Conversation, bool, error) {
	if userA == 0 || userB == 0 {
		return nil, false, apperr.Validation(apperr.CodeValidation, "both participants are required")
	}
	if userA == userB {
		return nil, false, apperr.ErrSelfConversation
	}
	low, high := models.CanonicalPair(userA, userB)

	if id, ok := s.cache.GetConversationID(ctx, low, high); ok {
		if conv, err := s.store.Conversations().FindByID(ctx, id); err == nil {
			return conv, false, nil
		}
	}

	for _, id := range []uint{low, high} {
		if _, err := s.store.Users().FindByID(ctx, id); err != nil {
			if repository.IsNotFound(err) {
				return nil, false, apperr.ErrUserNotFound
			}
			return nil, false, storeError(err)
		}
	}

	var (
		conv    *models.Conversation
		created bool
	)
	err := repository.WithRetry(ctx, s.retries, func() error {
		_, inserted, err := s.store.Conversations().InsertIfAbsent(ctx, low, high, createdBy)
		if err != nil && !repository.IsDuplicate(err) {
			return err
		}
		found, err := s.store.Conversations().FindByPair(ctx, low, high)
		if err != nil {
			return err
		}
		conv, created = found, inserted
		return nil
	})
	if err != nil {
		return nil, false, storeError(err)
	}

	if created {
		s.log.Info("conversation created",
			zap.Uint("conversation_id", conv.ID),
			zap.Uint("user_low_id", low),
			zap.Uint("user_high_id", high))
	}
	if err := s.cache.SetConversationID(ctx, low, high, conv.ID); err != nil {
		s.log.Debug("conversation cache write failed", zap.Error(err))
	}
	return conv, created, nil
}

// TouchLastMessage advances the watermark; older timestamps are ignored.
func (s *ConversationService) TouchLastMessage(ctx context.Context, conversationID uint, at time.Time) (bool, error) {
	advanced, err := s.touchLastMessage(ctx, s.store, conversationID, at)
	return advanced, storeError(err)
}

func (s *ConversationService) touchLastMessage(ctx context.Context, store repository.Store, conversationID uint, at time.Time) (bool, error) {
	return store.Conversations().TouchLastMessage(ctx, conversationID, at)
}

func (s *ConversationService) Get(ctx context.Context, conversationID uint) (*models.Conversation, error) {
	conv, err := s.store.Conversations().FindByID(ctx, conversationID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperr.ErrConversationNotFound
		}
		return nil, storeError(err)
	}
	return conv, nil
}

// RequireMember loads the conversation and checks userID is a participant.
func (s *ConversationService) RequireMember(ctx context.Context, conversationID, userID uint) (*models.Conversation, error) {
	conv, err := s.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasMember(userID) {
		return nil, apperr.ErrNotAMember
	}
	return conv, nil
}
