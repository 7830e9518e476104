package ws

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/gekymedia/gekychat-sub007/internal/metrics"
	"github.com/gekymedia/gekychat-sub007/internal/realtime"
	"github.com/gekymedia/gekychat-sub007/internal/repository"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

// Conn is the subset of *websocket.Conn the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetPongHandler(h func(appData string) error)
	SetReadDeadline(t time.Time) error
}

// ClientConnection wraps a WebSocket connection with metadata
type ClientConnection struct {
	Conn         Conn
	UserID       uint
	LastPong     time.Time
	SupportsGzip bool
	PingTicker   *time.Ticker
	CloseChan    chan struct{}

	writeMu sync.Mutex
}

// Write serializes writes; a websocket connection allows one writer at a time.
func (c *ClientConnection) Write(frameType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.Conn.WriteMessage(frameType, data)
}

func (c *ClientConnection) WriteJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Write(websocket.TextMessage, data)
}

func (c *ClientConnection) ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.Conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second))
}

// Hub manages all active WebSocket connections and is the in-process
// realtime transport: user.<id> events go to that user's connection (or the
// pending queue when offline), conversation.<id> events go to subscribers.
type Hub struct {
	clients            map[uint]*ClientConnection
	subscriptions      map[uint]map[uint]struct{}
	clientsMux         sync.RWMutex
	pendingMessageRepo repository.PendingMessageRepositoryInterface
	log                *zap.Logger
	maxRetries         int
	baseRetryDelay     time.Duration
	pingInterval       time.Duration
	pongTimeout        time.Duration
	pendingRetention   time.Duration
}

// NewHub creates a new Hub instance. Background workers start with Run.
func NewHub(pendingRepo repository.PendingMessageRepositoryInterface, log *zap.Logger) *Hub {
	return &Hub{
		clients:            make(map[uint]*ClientConnection),
		subscriptions:      make(map[uint]map[uint]struct{}),
		pendingMessageRepo: pendingRepo,
		log:                log,
		maxRetries:         5,
		baseRetryDelay:     2 * time.Second,
		pingInterval:       30 * time.Second,
		pongTimeout:        90 * time.Second,
		pendingRetention:   7 * 24 * time.Hour,
	}
}

// Run starts the retry, health and cleanup workers until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	go h.retryWorker(ctx)
	go h.connectionHealthChecker(ctx)
	go h.cleanupWorker(ctx)
}

func (h *Hub) Name() string { return "hub" }

// Publish implements realtime.Transport.
func (h *Hub) Publish(ctx context.Context, channel string, payload []byte) error {
	if userID, ok := realtime.ParseUserChannel(channel); ok {
		return h.SendToUser(ctx, userID, payload)
	}
	if convID, ok := realtime.ParseConversationChannel(channel); ok {
		h.sendToSubscribers(convID, payload)
		return nil
	}
	h.log.Debug("hub ignoring channel", zap.String("channel", channel))
	return nil
}

// Register adds a client connection with health monitoring
func (h *Hub) Register(userID uint, conn Conn, supportsGzip bool) *ClientConnection {
	clientConn := &ClientConnection{
		Conn:         conn,
		UserID:       userID,
		LastPong:     time.Now(),
		SupportsGzip: supportsGzip,
		PingTicker:   time.NewTicker(h.pingInterval),
		CloseChan:    make(chan struct{}),
	}

	conn.SetPongHandler(func(appData string) error {
		h.clientsMux.Lock()
		if client, exists := h.clients[userID]; exists {
			client.LastPong = time.Now()
		}
		h.clientsMux.Unlock()
		return conn.SetReadDeadline(time.Now().Add(h.pongTimeout))
	})
	_ = conn.SetReadDeadline(time.Now().Add(h.pongTimeout))

	h.clientsMux.Lock()
	if old, exists := h.clients[userID]; exists {
		old.PingTicker.Stop()
		close(old.CloseChan)
	} else {
		metrics.Connections.Inc()
	}
	h.clients[userID] = clientConn
	total := len(h.clients)
	h.clientsMux.Unlock()

	go h.pingRoutine(clientConn)

	h.log.Info("client connected",
		zap.Uint("user_id", userID),
		zap.Int("total", total),
		zap.Bool("gzip", supportsGzip))
	return clientConn
}

// Unregister removes a client connection and its subscriptions. A stale
// connection that was already replaced is ignored.
func (h *Hub) Unregister(userID uint, conn *ClientConnection) {
	h.clientsMux.Lock()
	client, exists := h.clients[userID]
	if !exists || (conn != nil && client != conn) {
		h.clientsMux.Unlock()
		return
	}
	client.PingTicker.Stop()
	close(client.CloseChan)
	delete(h.clients, userID)
	for convID, subs := range h.subscriptions {
		delete(subs, userID)
		if len(subs) == 0 {
			delete(h.subscriptions, convID)
		}
	}
	total := len(h.clients)
	h.clientsMux.Unlock()

	metrics.Connections.Dec()
	h.log.Info("client disconnected", zap.Uint("user_id", userID), zap.Int("total", total))
}

// Subscribe routes conversation.<id> events to userID's connection. The
// caller checks membership.
func (h *Hub) Subscribe(userID, conversationID uint) {
	h.clientsMux.Lock()
	defer h.clientsMux.Unlock()
	if _, online := h.clients[userID]; !online {
		return
	}
	subs, ok := h.subscriptions[conversationID]
	if !ok {
		subs = make(map[uint]struct{})
		h.subscriptions[conversationID] = subs
	}
	subs[userID] = struct{}{}
}

// IsOnline checks if a user is connected
func (h *Hub) IsOnline(userID uint) bool {
	h.clientsMux.RLock()
	defer h.clientsMux.RUnlock()
	_, exists := h.clients[userID]
	return exists
}

// Count returns the number of connected clients
func (h *Hub) Count() int {
	h.clientsMux.RLock()
	defer h.clientsMux.RUnlock()
	return len(h.clients)
}

// SendToUser writes an encoded event to userID, queueing it when the user is
// offline or the write fails.
func (h *Hub) SendToUser(ctx context.Context, userID uint, payload []byte) error {
	h.clientsMux.RLock()
	clientConn, exists := h.clients[userID]
	h.clientsMux.RUnlock()

	if !exists {
		return h.queueMessage(ctx, userID, payload, 0)
	}

	if err := h.write(clientConn, payload); err != nil {
		h.log.Warn("send failed, queueing", zap.Uint("user_id", userID), zap.Error(err))
		h.Unregister(userID, clientConn)
		return h.queueMessage(ctx, userID, payload, 0)
	}
	return nil
}

func (h *Hub) sendToSubscribers(conversationID uint, payload []byte) {
	h.clientsMux.RLock()
	targets := make([]*ClientConnection, 0, len(h.subscriptions[conversationID]))
	for userID := range h.subscriptions[conversationID] {
		if c, ok := h.clients[userID]; ok {
			targets = append(targets, c)
		}
	}
	h.clientsMux.RUnlock()

	for _, c := range targets {
		if err := h.write(c, payload); err != nil {
			h.log.Warn("conversation send failed",
				zap.Uint("user_id", c.UserID),
				zap.Uint("conversation_id", conversationID),
				zap.Error(err))
			h.Unregister(c.UserID, c)
		}
	}
}

// write sends payload, gzip-compressed when the client asked for it and it helps.
func (h *Hub) write(c *ClientConnection, payload []byte) error {
	frameType := websocket.TextMessage
	data := payload
	if c.SupportsGzip && len(payload) > 512 {
		if compressed, err := compressData(payload); err == nil && len(compressed) < len(payload) {
			data = compressed
			frameType = websocket.BinaryMessage
		}
	}
	return c.Write(frameType, data)
}

// queueMessage stores an event for offline or failed delivery
func (h *Hub) queueMessage(ctx context.Context, userID uint, payload []byte, priority int) error {
	if h.pendingMessageRepo == nil {
		return nil
	}
	var envelope struct {
		Data struct {
			MessageID uint `json:"message_id"`
			ID        uint `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		h.log.Debug("queued payload is not an event envelope",
			zap.Uint("user_id", userID),
			zap.Error(err))
	}
	messageID := envelope.Data.MessageID
	if messageID == 0 {
		messageID = envelope.Data.ID
	}

	if err := h.pendingMessageRepo.Enqueue(ctx, userID, messageID, string(payload), priority); err != nil {
		return err
	}
	metrics.PendingQueued.Inc()
	return nil
}

// FlushPendingMessages sends all queued events to a newly connected user
func (h *Hub) FlushPendingMessages(ctx context.Context, userID uint) error {
	if h.pendingMessageRepo == nil {
		return nil
	}

	const batchSize = 50
	for {
		h.clientsMux.RLock()
		clientConn, exists := h.clients[userID]
		h.clientsMux.RUnlock()
		if !exists {
			return nil
		}

		pending, err := h.pendingMessageRepo.GetPendingForUser(ctx, userID, batchSize)
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			return nil
		}

		batch := make([]json.RawMessage, 0, len(pending))
		ids := make([]uint, 0, len(pending))
		for _, pm := range pending {
			if !json.Valid([]byte(pm.Payload)) {
				h.log.Warn("dropping malformed pending message", zap.Uint("pending_id", pm.ID))
				ids = append(ids, pm.ID)
				continue
			}
			batch = append(batch, json.RawMessage(pm.Payload))
			ids = append(ids, pm.ID)
		}

		if err := clientConn.WriteJSON(map[string]any{
			"type":     "batch",
			"messages": batch,
			"count":    len(batch),
		}); err != nil {
			// Connection failed, messages stay in queue
			return err
		}
		if err := h.pendingMessageRepo.DeleteBatch(ctx, ids); err != nil {
			h.log.Error("delete flushed messages", zap.Error(err))
			return err
		}
		h.log.Debug("flushed pending messages", zap.Uint("user_id", userID), zap.Int("count", len(batch)))

		if len(pending) < batchSize {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// retryWorker delivers queued events to users who came back online and
// backs off exponentially for those who did not.
func (h *Hub) retryWorker(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.retryPending(ctx)
		}
	}
}

func (h *Hub) retryPending(ctx context.Context) {
	if h.pendingMessageRepo == nil {
		return
	}
	retryable, err := h.pendingMessageRepo.GetRetryable(ctx, 100)
	if err != nil {
		h.log.Warn("fetch retryable messages", zap.Error(err))
		return
	}

	for _, pm := range retryable {
		h.clientsMux.RLock()
		clientConn, isOnline := h.clients[pm.UserID]
		h.clientsMux.RUnlock()

		if isOnline {
			if err := h.write(clientConn, []byte(pm.Payload)); err == nil {
				if err := h.pendingMessageRepo.Delete(ctx, pm.ID); err != nil {
					h.log.Warn("delete delivered message", zap.Uint("pending_id", pm.ID), zap.Error(err))
				}
				continue
			}
		}

		attempts := pm.Attempts + 1
		nextRetry := time.Now().Add(h.backoff(attempts))
		if err := h.pendingMessageRepo.MarkAttempted(ctx, pm.ID, attempts, &nextRetry); err != nil {
			h.log.Warn("mark attempted", zap.Uint("pending_id", pm.ID), zap.Error(err))
		}
	}
}

// backoff is 2s, 4s, 8s... and one hour once maxRetries is reached.
func (h *Hub) backoff(attempts int) time.Duration {
	if attempts >= h.maxRetries {
		return time.Hour
	}
	return h.baseRetryDelay * time.Duration(1<<uint(attempts))
}

func (h *Hub) cleanupWorker(ctx context.Context) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if h.pendingMessageRepo == nil {
				continue
			}
			if err := h.pendingMessageRepo.CleanupOld(ctx, h.pendingRetention); err != nil {
				h.log.Warn("cleanup pending messages", zap.Error(err))
			}
		}
	}
}

// pingRoutine sends periodic ping messages to keep connection alive
func (h *Hub) pingRoutine(client *ClientConnection) {
	for {
		select {
		case <-client.CloseChan:
			return
		case <-client.PingTicker.C:
			if err := client.ping(); err != nil {
				h.log.Debug("ping failed", zap.Uint("user_id", client.UserID), zap.Error(err))
				h.Unregister(client.UserID, client)
				return
			}
		}
	}
}

// connectionHealthChecker removes connections that stopped answering pings
func (h *Hub) connectionHealthChecker(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		h.clientsMux.RLock()
		dead := make([]*ClientConnection, 0)
		now := time.Now()
		for _, client := range h.clients {
			if now.Sub(client.LastPong) > h.pongTimeout {
				dead = append(dead, client)
			}
		}
		h.clientsMux.RUnlock()

		for _, client := range dead {
			h.log.Info("removing dead connection", zap.Uint("user_id", client.UserID))
			h.Unregister(client.UserID, client)
		}
	}
}

func compressData(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	gzipWriter := gzip.NewWriter(&buf)
	if _, err := gzipWriter.Write(data); err != nil {
		return nil, err
	}
	if err := gzipWriter.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecompressMessage inflates a gzip-compressed binary frame from a client.
func DecompressMessage(data []byte) ([]byte, error) {
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	return io.ReadAll(io.LimitReader(reader, 1<<20))
}
