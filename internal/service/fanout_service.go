package service

import (
	"context"
	"time"

	"github.com/gekymedia/gekychat-sub007/internal/metrics"
	"github.com/gekymedia/gekychat-sub007/internal/models"
	"github.com/gekymedia/gekychat-sub007/internal/realtime"
	"go.uber.org/zap"
)

const publishTimeout = 5 * time.Second

// StatusChange is the payload of a message.status event.
type StatusChange struct {
	ConversationID uint                 `json:"conversation_id"`
	MessageID      uint                 `json:"message_id"`
	UserID         uint                 `json:"user_id"`
	State          models.DeliveryState `json:"state"`
	At             time.Time            `json:"at"`
}

// FanoutService turns committed changes into realtime events. Publishing is
// fire-and-forget: failures are logged and counted, never returned.
type FanoutService struct {
	transport realtime.Transport
	log       *zap.Logger
}

func NewFanoutService(transport realtime.Transport, log *zap.Logger) *FanoutService {
	return &FanoutService{transport: transport, log: log}
}

// Emit publishes message.created once on the conversation channel and once on
// each recipient's user channel. Call it only after the message is committed.
func (f *FanoutService) Emit(ctx context.Context, message *models.Message, recipients []uint) {
	if f == nil || f.transport == nil {
		return
	}
	payload := message.ToResponse()
	f.publish(ctx, realtime.EventMessageCreated, realtime.ConversationChannel(message.ConversationID), payload)
	for _, uid := range recipients {
		f.publish(ctx, realtime.EventMessageCreated, realtime.UserChannel(uid), payload)
	}
}

// EmitStatus publishes message.status on the conversation channel and to the
// sender, unless the sender changed their own row.
func (f *FanoutService) EmitStatus(ctx context.Context, subject Subject, change StatusChange) {
	if f == nil || f.transport == nil {
		return
	}
	if subject.ConversationID != 0 {
		f.publish(ctx, realtime.EventMessageStatus, realtime.ConversationChannel(subject.ConversationID), change)
	}
	if sender := subject.senderID(); sender != 0 && sender != change.UserID {
		f.publish(ctx, realtime.EventMessageStatus, realtime.UserChannel(sender), change)
	}
}

func (f *FanoutService) publish(ctx context.Context, eventType, channel string, data any) {
	ev, err := realtime.NewEvent(eventType, channel, data)
	if err != nil {
		f.log.Error("build event", zap.String("type", eventType), zap.Error(err))
		return
	}
	raw, err := ev.Encode()
	if err != nil {
		f.log.Error("encode event", zap.String("type", eventType), zap.Error(err))
		return
	}

	// The sender's request may already be gone; delivery should not be.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := f.transport.Publish(pubCtx, channel, raw); err != nil {
		names := realtime.FailedTransports(err)
		if len(names) == 0 {
			names = []string{f.transport.Name()}
		}
		for _, name := range names {
			metrics.FanoutPublishFailures.WithLabelValues(name).Inc()
		}
		f.log.Warn("publish event failed",
			zap.String("type", eventType),
			zap.String("channel", channel),
			zap.String("event_id", ev.ID),
			zap.Error(err))
	}
}
