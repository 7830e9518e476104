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

// Subject identifies the message-like entity whose per-recipient statuses are
// tracked. Kind is always set explicitly by the caller.
type Subject struct {
	Kind           models.SubjectKind
	MessageID      uint
	ConversationID uint
	SenderID       *uint
}

func DirectMessageSubject(m *models.Message) Subject {
	return Subject{
		Kind:           models.SubjectDirectMessage,
		MessageID:      m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
	}
}

func (s Subject) senderID() uint {
	if s.SenderID == nil {
		return 0
	}
	return *s.SenderID
}

// StatusService is the per-recipient pending/delivered/read state machine.
// Every transition is a single upsert that can only raise the state, so
// concurrent calls for the same recipient commute.
type StatusService struct {
	store   repository.Store
	cache   *cache.MessageCache
	fanout  *FanoutService
	retries int
	log     *zap.Logger
}

func NewStatusService(store repository.Store, mc *cache.MessageCache, fanout *FanoutService, retries int, log *zap.Logger) *StatusService {
	return &StatusService{store: store, cache: mc, fanout: fanout, retries: retries, log: log}
}

func (s *StatusService) SeedPending(ctx context.Context, subject Subject, userIDs []uint) error {
	return storeError(s.seedPending(ctx, s.store, subject, userIDs))
}

func (s *StatusService) seedPending(ctx context.Context, store repository.Store, subject Subject, userIDs []uint) error {
	return store.Statuses().SeedPending(ctx, subject.Kind, subject.MessageID, userIDs)
}

// MarkDelivered moves pending to delivered. It is a no-op once delivered or read.
func (s *StatusService) MarkDelivered(ctx context.Context, subject Subject, userID uint) (bool, error) {
	return s.advance(ctx, subject, userID, models.StateDelivered)
}

// MarkRead moves pending or delivered to read, stamping delivered_at if it
// was never set.
func (s *StatusService) MarkRead(ctx context.Context, subject Subject, userID uint) (bool, error) {
	return s.advance(ctx, subject, userID, models.StateRead)
}

func (s *StatusService) advance(ctx context.Context, subject Subject, userID uint, state models.DeliveryState) (bool, error) {
	at := time.Now().UTC()
	var changed bool
	err := repository.WithRetry(ctx, s.retries, func() error {
		var err error
		changed, err = s.store.Statuses().Advance(ctx, subject.Kind, subject.MessageID, userID, state, at)
		return err
	})
	if err != nil {
		return false, storeError(err)
	}
	if !changed {
		return false, nil
	}

	if err := s.cache.InvalidateStatusCounts(ctx, subject.Kind, subject.MessageID); err != nil {
		s.log.Debug("status counts invalidation failed", zap.Error(err))
	}
	s.fanout.EmitStatus(ctx, subject, StatusChange{
		ConversationID: subject.ConversationID,
		MessageID:      subject.MessageID,
		UserID:         userID,
		State:          state,
		At:             at,
	})
	return true, nil
}

// DeleteForUser hides the message for userID only. Delivery state and other
// recipients are untouched.
func (s *StatusService) DeleteForUser(ctx context.Context, subject Subject, userID uint) (bool, error) {
	var changed bool
	err := repository.WithRetry(ctx, s.retries, func() error {
		var err error
		changed, err = s.store.Statuses().MarkDeleted(ctx, subject.Kind, subject.MessageID, userID, time.Now().UTC())
		return err
	})
	return changed, storeError(err)
}

// AggregateCounts reports delivered/read counts excluding the sender's own
// row, floored at zero.
func (s *StatusService) AggregateCounts(ctx context.Context, subject Subject) (models.StatusCounts, error) {
	if cached, ok := s.cache.GetStatusCounts(ctx, subject.Kind, subject.MessageID); ok {
		return *cached, nil
	}

	tally, err := s.store.Statuses().Tally(ctx, subject.Kind, subject.MessageID, subject.senderID())
	if err != nil {
		return models.StatusCounts{}, storeError(err)
	}
	counts := models.StatusCounts{
		MessageID:      subject.MessageID,
		DeliveredCount: excludeSender(tally.DeliveredTotal, tally.SenderDelivered),
		ReadCount:      excludeSender(tally.ReadTotal, tally.SenderRead),
	}
	if err := s.cache.SetStatusCounts(ctx, subject.Kind, counts); err != nil {
		s.log.Debug("status counts cache write failed", zap.Error(err))
	}
	return counts, nil
}

func excludeSender(total int64, senderCounted bool) int64 {
	if senderCounted {
		total--
	}
	if total < 0 {
		return 0
	}
	return total
}

func (s *StatusService) Get(ctx context.Context, subject Subject, userID uint) (*models.MessageStatus, error) {
	st, err := s.store.Statuses().Find(ctx, subject.Kind, subject.MessageID, userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperr.ErrMessageNotFound
		}
		return nil, storeError(err)
	}
	return st, nil
}
