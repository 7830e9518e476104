package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gekymedia/gekychat-sub007/internal/apperr"
	"github.com/gekymedia/gekychat-sub007/internal/metrics"
	"github.com/gekymedia/gekychat-sub007/internal/models"
	"github.com/gekymedia/gekychat-sub007/internal/repository"
	"github.com/gekymedia/gekychat-sub007/internal/validation"
	"go.uber.org/zap"
)

const maxAttachments = 10

// AttachmentChecker reports the first attachment reference that does not
// exist in blob storage.
type AttachmentChecker interface {
	AttachmentsExist(ctx context.Context, refs []string) (missing string, err error)
}

type MessageServiceDeps struct {
	Store         repository.Store
	Identity      *IdentityService
	Conversations *ConversationService
	Statuses      *StatusService
	Fanout        *FanoutService
	// Attachments may be nil, in which case only the shape of references is checked.
	Attachments   AttachmentChecker
	MaxLength     int
	RetryAttempts int
	Logger        *zap.Logger
}

// MessageService ingests messages from users, platform clients and the
// system. Persistence commits before any event is published.
type MessageService struct {
	store         repository.Store
	identity      *IdentityService
	conversations *ConversationService
	statuses      *StatusService
	fanout        *FanoutService
	attachments   AttachmentChecker
	maxLength     int
	retries       int
	log           *zap.Logger
}

func NewMessageService(d MessageServiceDeps) *MessageService {
	return &MessageService{
		store:         d.Store,
		identity:      d.Identity,
		conversations: d.Conversations,
		statuses:      d.Statuses,
		fanout:        d.Fanout,
		attachments:   d.Attachments,
		maxLength:     d.MaxLength,
		retries:       d.RetryAttempts,
		log:           d.Logger,
	}
}

type SendInput struct {
	Body        string         `json:"body"`
	Attachments []string       `json:"attachments"`
	ExternalRef string         `json:"external_ref"`
	Metadata    map[string]any `json:"metadata"`
}

type SendToPhoneInput struct {
	Phone string `json:"phone"`
	SendInput
}

type SendResult struct {
	MessageID       uint            `json:"message_id"`
	ConversationID  uint            `json:"conversation_id"`
	RecipientUserID uint            `json:"recipient_user_id,omitempty"`
	AutoCreated     bool            `json:"auto_created"`
	Duplicate       bool            `json:"duplicate"`
	Message         *models.Message `json:"-"`
}

// SendFromUser posts a message as caller.UserID into a conversation the user
// belongs to.
func (s *MessageService) SendFromUser(ctx context.Context, caller Caller, conversationID uint, in SendInput) (*SendResult, error) {
	if err := s.checkSender(ctx, caller.UserID); err != nil {
		return nil, err
	}
	draft, err := s.draft(ctx, in)
	if err != nil {
		return nil, err
	}
	conv, err := s.conversations.RequireMember(ctx, conversationID, caller.UserID)
	if err != nil {
		return nil, err
	}
	return s.sendFromUser(ctx, caller, conv, draft)
}

func (s *MessageService) sendFromUser(ctx context.Context, caller Caller, conv *models.Conversation, draft *models.Message) (*SendResult, error) {
	sender := caller.UserID
	draft.ConversationID = conv.ID
	draft.SenderID = &sender
	draft.SenderType = models.SenderUser
	return s.persist(ctx, conv, draft, []uint{conv.Other(sender)})
}

// SendFromPlatform posts a message on behalf of the platform client's owner.
// A repeated external_ref from the same client returns the first message with
// Duplicate set instead of creating another. The ref is matched per client,
// not per conversation: a reused ref aimed at another conversation still
// returns the original message.
func (s *MessageService) SendFromPlatform(ctx context.Context, caller Caller, conversationID uint, in SendInput) (*SendResult, error) {
	if !caller.IsPlatform() {
		return nil, apperr.ErrInvalidCredentials
	}
	draft, err := s.draft(ctx, in)
	if err != nil {
		return nil, err
	}
	if res, err := s.findDuplicate(ctx, caller, draft); res != nil || err != nil {
		if res != nil && res.ConversationID != conversationID {
			s.log.Warn("external_ref reused for a different conversation",
				zap.Uint("platform_client_id", caller.PlatformClientID),
				zap.Stringp("external_ref", draft.ExternalRef),
				zap.Uint("requested_conversation_id", conversationID),
				zap.Uint("conversation_id", res.ConversationID))
		}
		return res, err
	}
	if err := s.checkSender(ctx, caller.UserID); err != nil {
		return nil, err
	}
	conv, err := s.conversations.RequireMember(ctx, conversationID, caller.UserID)
	if err != nil {
		return nil, err
	}
	return s.sendFromPlatform(ctx, caller, conv, draft)
}

func (s *MessageService) sendFromPlatform(ctx context.Context, caller Caller, conv *models.Conversation, draft *models.Message) (*SendResult, error) {
	owner, clientID := caller.UserID, caller.PlatformClientID
	draft.ConversationID = conv.ID
	draft.SenderID = &owner
	draft.SenderType = models.SenderPlatform
	draft.PlatformClientID = &clientID
	return s.persist(ctx, conv, draft, []uint{conv.Other(owner)})
}

// SendToPhone resolves (or, when allowed, creates) the recipient by phone,
// finds or creates the direct conversation and sends into it. Retrying with
// the same external_ref re-resolves harmlessly and never duplicates the message.
func (s *MessageService) SendToPhone(ctx context.Context, caller Caller, in SendToPhoneInput) (*SendResult, error) {
	phone, err := s.identity.Normalize(in.Phone)
	if err != nil {
		return nil, err
	}
	draft, err := s.draft(ctx, in.SendInput)
	if err != nil {
		return nil, err
	}
	if res, err := s.findDuplicate(ctx, caller, draft); res != nil || err != nil {
		return res, err
	}
	if err := s.checkSender(ctx, caller.UserID); err != nil {
		return nil, err
	}

	recipient, autoCreated, err := s.identity.ResolveOrAutoCreate(ctx, phone, caller)
	if err != nil {
		return nil, err
	}
	conv, _, err := s.conversations.FindOrCreateDirect(ctx, caller.UserID, recipient.ID, caller.UserID)
	if err != nil {
		return nil, err
	}

	var res *SendResult
	if caller.IsPlatform() {
		res, err = s.sendFromPlatform(ctx, caller, conv, draft)
	} else {
		res, err = s.sendFromUser(ctx, caller, conv, draft)
	}
	if err != nil {
		return nil, err
	}
	res.RecipientUserID = recipient.ID
	res.AutoCreated = autoCreated
	return res, nil
}

// SendSystem posts a system-authored message. Both participants are recipients.
func (s *MessageService) SendSystem(ctx context.Context, conversationID uint, body string, metadata map[string]any) (*SendResult, error) {
	draft, err := s.draft(ctx, SendInput{Body: body, Metadata: metadata})
	if err != nil {
		return nil, err
	}
	conv, err := s.conversations.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	draft.ConversationID = conv.ID
	draft.SenderType = models.SenderSystem
	return s.persist(ctx, conv, draft, conv.Participants())
}

// persist writes the message, its pending statuses and the conversation
// watermark in one transaction, then publishes.
func (s *MessageService) persist(ctx context.Context, conv *models.Conversation, draft *models.Message, recipients []uint) (*SendResult, error) {
	draft.CreatedAt = time.Now().UTC()

	var (
		stored  *models.Message
		created bool
	)
	err := repository.WithRetry(ctx, s.retries, func() error {
		return s.store.Transaction(ctx, func(tx repository.Store) error {
			m := *draft
			row, inserted, err := tx.Messages().CreateIdempotent(ctx, &m)
			if err != nil {
				return err
			}
			stored, created = row, inserted
			if !inserted {
				return nil
			}
			if err := s.statuses.seedPending(ctx, tx, DirectMessageSubject(row), recipients); err != nil {
				return err
			}
			_, err = s.conversations.touchLastMessage(ctx, tx, conv.ID, row.CreatedAt)
			return err
		})
	})
	if err != nil {
		return nil, storeError(err)
	}

	res := &SendResult{MessageID: stored.ID, ConversationID: stored.ConversationID, Message: stored}
	if !created {
		res.Duplicate = true
		metrics.MessagesDuplicate.Inc()
		s.log.Info("duplicate message suppressed",
			zap.Uint("message_id", stored.ID),
			zap.String("sender_type", string(stored.SenderType)),
			zap.Stringp("external_ref", stored.ExternalRef))
		return res, nil
	}

	metrics.MessagesIngested.WithLabelValues(string(stored.SenderType)).Inc()
	s.fanout.Emit(ctx, stored, recipients)
	return res, nil
}

// findDuplicate short-circuits a resend whose external_ref is already stored
// in the caller's scope: per platform client for platform callers, per sender
// otherwise. The insert path still enforces uniqueness on its own.
func (s *MessageService) findDuplicate(ctx context.Context, caller Caller, draft *models.Message) (*SendResult, error) {
	if draft.ExternalRef == nil {
		return nil, nil
	}
	scope, owner := models.RefScopeUser, caller.UserID
	if caller.IsPlatform() {
		scope, owner = models.RefScopePlatform, caller.PlatformClientID
	}
	existing, err := s.store.Messages().FindByExternalRef(ctx, scope, owner, *draft.ExternalRef)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, nil
		}
		return nil, storeError(err)
	}
	metrics.MessagesDuplicate.Inc()
	res := &SendResult{MessageID: existing.ID, ConversationID: existing.ConversationID, Duplicate: true, Message: existing}
	if conv, err := s.conversations.Get(ctx, existing.ConversationID); err == nil && conv.HasMember(caller.UserID) {
		res.RecipientUserID = conv.Other(caller.UserID)
	}
	return res, nil
}

func (s *MessageService) checkSender(ctx context.Context, userID uint) error {
	if userID == 0 {
		return apperr.ErrUserNotFound
	}
	u, err := s.store.Users().FindByID(ctx, userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return apperr.ErrUserNotFound
		}
		return storeError(err)
	}
	if u.IsBanned {
		return apperr.ErrUserBanned
	}
	return nil
}

// draft validates input and builds an unsaved message.
func (s *MessageService) draft(ctx context.Context, in SendInput) (*models.Message, error) {
	body := strings.TrimSpace(in.Body)
	if s.maxLength > 0 && len([]rune(body)) > s.maxLength {
		return nil, apperr.Validation(apperr.CodeValidation, "message body is too long")
	}

	attachments := make([]string, 0, len(in.Attachments))
	for _, ref := range in.Attachments {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			continue
		}
		if !validation.ValidateAttachmentRef(ref) {
			return nil, apperr.Validation(apperr.CodeValidation, "invalid attachment reference")
		}
		attachments = append(attachments, ref)
	}
	if body == "" && len(attachments) == 0 {
		return nil, apperr.ErrEmptyMessage
	}
	if len(attachments) > maxAttachments {
		return nil, apperr.Validation(apperr.CodeValidation, "too many attachments")
	}
	if len(attachments) > 0 && s.attachments != nil {
		missing, err := s.attachments.AttachmentsExist(ctx, attachments)
		if err != nil {
			return nil, apperr.Internal(err)
		}
		if missing != "" {
			return nil, apperr.Validation(apperr.CodeValidation, "attachment "+missing+" does not exist")
		}
	}

	m := &models.Message{Metadata: in.Metadata}
	if body != "" {
		m.Body = &body
	}
	if len(attachments) > 0 {
		m.Attachments = attachments
	}
	if ref := strings.TrimSpace(in.ExternalRef); ref != "" {
		if !validation.ValidateExternalRef(ref) {
			return nil, apperr.Validation(apperr.CodeValidation, "invalid external_ref")
		}
		m.ExternalRef = &ref
	}
	return m, nil
}

// Get returns a message visible to caller: caller must be a participant and
// must not have deleted it for themselves.
func (s *MessageService) Get(ctx context.Context, caller Caller, messageID uint) (*models.Message, error) {
	m, err := s.loadForMember(ctx, caller, messageID)
	if err != nil {
		return nil, err
	}
	st, err := s.statuses.Get(ctx, DirectMessageSubject(m), caller.UserID)
	switch {
	case errors.Is(err, apperr.ErrMessageNotFound):
		// Senders have no status row.
	case err != nil:
		return nil, err
	case st.IsDeleted():
		return nil, apperr.ErrMessageNotFound
	}
	return m, nil
}

// loadForMember returns the message if caller participates in its
// conversation, whether or not caller has deleted it.
func (s *MessageService) loadForMember(ctx context.Context, caller Caller, messageID uint) (*models.Message, error) {
	m, err := s.store.Messages().FindByID(ctx, messageID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperr.ErrMessageNotFound
		}
		return nil, storeError(err)
	}
	if _, err := s.conversations.RequireMember(ctx, m.ConversationID, caller.UserID); err != nil {
		if errors.Is(err, apperr.ErrConversationNotFound) {
			return nil, apperr.ErrMessageNotFound
		}
		return nil, err
	}
	return m, nil
}

// MarkDelivered records delivery to caller. Repeats are no-ops, and a
// message caller deleted can still be marked.
func (s *MessageService) MarkDelivered(ctx context.Context, caller Caller, messageID uint) (bool, error) {
	m, err := s.loadForMember(ctx, caller, messageID)
	if err != nil {
		return false, err
	}
	return s.statuses.MarkDelivered(ctx, DirectMessageSubject(m), caller.UserID)
}

// MarkRead records that caller read the message. Repeats are no-ops.
func (s *MessageService) MarkRead(ctx context.Context, caller Caller, messageID uint) (bool, error) {
	m, err := s.loadForMember(ctx, caller, messageID)
	if err != nil {
		return false, err
	}
	return s.statuses.MarkRead(ctx, DirectMessageSubject(m), caller.UserID)
}

// DeleteForUser hides the message from caller only. Deleting twice is a no-op.
func (s *MessageService) DeleteForUser(ctx context.Context, caller Caller, messageID uint) error {
	m, err := s.loadForMember(ctx, caller, messageID)
	if err != nil {
		return err
	}
	_, err = s.statuses.DeleteForUser(ctx, DirectMessageSubject(m), caller.UserID)
	return err
}

// Receipts returns delivered/read counts for a message, not counting its sender.
func (s *MessageService) Receipts(ctx context.Context, caller Caller, messageID uint) (models.StatusCounts, error) {
	m, err := s.Get(ctx, caller, messageID)
	if err != nil {
		return models.StatusCounts{}, err
	}
	return s.statuses.AggregateCounts(ctx, DirectMessageSubject(m))
}
