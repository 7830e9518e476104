package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/gekymedia/gekychat-sub007/internal/httpx"
	"github.com/gekymedia/gekychat-sub007/internal/service"
	"github.com/gekymedia/gekychat-sub007/internal/storage"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// AttachmentSigner issues short-lived download URLs for attachment references.
type AttachmentSigner interface {
	PresignAttachment(ctx context.Context, ref string, ttl time.Duration) (string, error)
}

type MediaHandler struct {
	messageService *service.MessageService
	signer         AttachmentSigner
	log            *zap.Logger
}

// NewMediaHandler accepts a nil signer when blob storage is not configured.
func NewMediaHandler(messageService *service.MessageService, signer AttachmentSigner, log *zap.Logger) *MediaHandler {
	return &MediaHandler{messageService: messageService, signer: signer, log: log}
}

// GetAttachments returns presigned URLs for a message's attachments, in order.
// GET /api/messages/:id/attachments
func (h *MediaHandler) GetAttachments(c *fiber.Ctx) error {
	if h.signer == nil {
		return httpx.Error(c, fiber.StatusServiceUnavailable, "storage_not_configured", "Storage not configured")
	}
	caller, ok := userCaller(c)
	if !ok {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	messageID, err := httpx.ParamUint(c, "id")
	if err != nil {
		return httpx.BadRequest(c, "invalid_message_id", "Invalid message id")
	}

	m, err := h.messageService.Get(c.UserContext(), caller, messageID)
	if err != nil {
		return httpx.FromError(c, err)
	}

	type attachmentURL struct {
		Ref string `json:"ref"`
		URL string `json:"url"`
	}
	urls := make([]attachmentURL, 0, len(m.Attachments))
	for _, ref := range m.Attachments {
		u, err := h.signer.PresignAttachment(c.UserContext(), ref, storage.DefaultPresignTTL)
		if err != nil {
			if errors.Is(err, storage.ErrInvalidKey) {
				continue
			}
			h.log.Error("presign attachment", zap.Uint("message_id", messageID), zap.String("ref", ref), zap.Error(err))
			return httpx.Internal(c, "media_presign_failed")
		}
		urls = append(urls, attachmentURL{Ref: ref, URL: u})
	}

	c.Set("Cache-Control", "private, no-store")
	return c.JSON(fiber.Map{
		"message_id":  messageID,
		"attachments": urls,
		"expires_in":  int(storage.DefaultPresignTTL / time.Second),
	})
}
