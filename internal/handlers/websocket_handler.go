package handlers

import (
	"context"

	"github.com/gekymedia/gekychat-sub007/internal/cache"
	"github.com/gekymedia/gekychat-sub007/internal/handlers/ws"
	"github.com/gekymedia/gekychat-sub007/internal/models"
	"github.com/gekymedia/gekychat-sub007/internal/service"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

type WebSocketHandler struct {
	receipts      ws.ReceiptMarker
	conversations ws.MembershipChecker
	hub           *ws.Hub
	userCache     *cache.UserCache
	log           *zap.Logger
	debug         bool
}

func NewWebSocketHandler(hub *ws.Hub, receipts ws.ReceiptMarker, conversations ws.MembershipChecker, userCache *cache.UserCache, log *zap.Logger, debug bool) *WebSocketHandler {
	return &WebSocketHandler{
		receipts:      receipts,
		conversations: conversations,
		hub:           hub,
		userCache:     userCache,
		log:           log,
		debug:         debug,
	}
}

// GetHub returns the hub instance
func (h *WebSocketHandler) GetHub() *ws.Hub {
	return h.hub
}

// HandleWebSocket runs after AuthRequired and LoadUser; the loaded user is in
// Locals("user").
func (h *WebSocketHandler) HandleWebSocket(c *websocket.Conn) {
	user, ok := c.Locals("user").(*models.User)
	if !ok || user == nil {
		_ = c.Close()
		return
	}
	userID := user.ID
	log := h.log.With(zap.Uint("user_id", userID))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	supportsGzip := c.Query("gzip") == "1" || c.Headers("X-Supports-Gzip") == "1"
	client := h.hub.Register(userID, c, supportsGzip)

	if err := h.userCache.SetUserOnline(ctx, userID); err != nil {
		log.Warn("set user online", zap.Error(err))
	}

	go func() {
		if err := h.hub.FlushPendingMessages(ctx, userID); err != nil {
			log.Warn("flush pending messages", zap.Error(err))
		}
	}()

	defer func() {
		h.hub.Unregister(userID, client)
		if !h.hub.IsOnline(userID) {
			if err := h.userCache.SetUserOffline(context.Background(), userID); err != nil {
				log.Warn("set user offline", zap.Error(err))
			}
		}
	}()

	msgCtx := &ws.MessageContext{
		Ctx:           ctx,
		Caller:        service.UserCaller(user),
		Client:        client,
		Hub:           h.hub,
		Receipts:      h.receipts,
		Conversations: h.conversations,
		Log:           log,
	}

	for {
		messageType, messageBytes, err := c.ReadMessage()
		if err != nil {
			log.Debug("websocket read ended", zap.Error(err))
			break
		}

		if h.debug {
			log.Debug("ws_recv", zap.Int("frame_type", messageType), zap.Int("size", len(messageBytes)))
		}

		if err := h.userCache.RefreshUserOnline(ctx, userID); err != nil {
			log.Debug("refresh presence", zap.Error(err))
		}

		if messageType == websocket.BinaryMessage {
			decompressed, err := ws.DecompressMessage(messageBytes)
			if err != nil {
				_ = ws.SendError(client, "decompression_failed", "Failed to decompress message", err.Error())
				continue
			}
			messageBytes = decompressed
		}

		msg, err := ws.Deserialize(messageBytes)
		if err != nil {
			_ = ws.SendError(client, "invalid_message", "Invalid message format", err.Error())
			continue
		}

		if err := msg.Process(msgCtx); err != nil {
			log.Warn("process websocket frame", zap.String("type", msg.GetType()), zap.Error(err))
			break
		}
	}
}
