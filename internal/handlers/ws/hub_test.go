package ws

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/gekymedia/gekychat-sub007/internal/apperr"
	"github.com/gekymedia/gekychat-sub007/internal/models"
	"github.com/gekymedia/gekychat-sub007/internal/realtime"
	"github.com/gekymedia/gekychat-sub007/internal/service"
	"github.com/gofiber/websocket/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type frame struct {
	kind int
	data []byte
}

type fakeConn struct {
	mu     sync.Mutex
	frames []frame
	fail   bool
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return assert.AnError
	}
	c.frames = append(c.frames, frame{kind: messageType, data: append([]byte(nil), data...)})
	return nil
}

func (c *fakeConn) WriteControl(int, []byte, time.Time) error { return nil }
func (c *fakeConn) SetPongHandler(func(string) error)         {}
func (c *fakeConn) SetReadDeadline(time.Time) error           { return nil }

func (c *fakeConn) Frames() []frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]frame(nil), c.frames...)
}

type fakePending struct {
	mu     sync.Mutex
	nextID uint
	rows   map[uint]models.PendingMessage
}

func newFakePending() *fakePending {
	return &fakePending{rows: make(map[uint]models.PendingMessage)}
}

func (p *fakePending) Enqueue(ctx context.Context, userID, messageID uint, payload string, priority int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	p.rows[p.nextID] = models.PendingMessage{ID: p.nextID, UserID: userID, MessageID: messageID, Payload: payload, Priority: priority}
	return nil
}

func (p *fakePending) GetPendingForUser(ctx context.Context, userID uint, limit int) ([]models.PendingMessage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []models.PendingMessage
	for id := uint(1); id <= p.nextID && len(out) < limit; id++ {
		if pm, ok := p.rows[id]; ok && pm.UserID == userID {
			out = append(out, pm)
		}
	}
	return out, nil
}

func (p *fakePending) GetRetryable(ctx context.Context, limit int) ([]models.PendingMessage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []models.PendingMessage
	for id := uint(1); id <= p.nextID && len(out) < limit; id++ {
		if pm, ok := p.rows[id]; ok {
			out = append(out, pm)
		}
	}
	return out, nil
}

func (p *fakePending) MarkAttempted(ctx context.Context, id uint, attempts int, nextRetry *time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	pm := p.rows[id]
	pm.Attempts = attempts
	pm.NextRetry = nextRetry
	p.rows[id] = pm
	return nil
}

func (p *fakePending) Delete(ctx context.Context, id uint) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.rows, id)
	return nil
}

func (p *fakePending) DeleteBatch(ctx context.Context, ids []uint) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, id := range ids {
		delete(p.rows, id)
	}
	return nil
}

func (p *fakePending) CleanupOld(ctx context.Context, olderThan time.Duration) error { return nil }

func (p *fakePending) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.rows)
}

func encodedEvent(t *testing.T, channel string, messageID uint) []byte {
	t.Helper()
	ev, err := realtime.NewEvent(realtime.EventMessageCreated, channel, map[string]any{"id": messageID, "body": "hi"})
	require.NoError(t, err)
	raw, err := ev.Encode()
	require.NoError(t, err)
	return raw
}

func TestHubPublishToOnlineUser(t *testing.T) {
	pending := newFakePending()
	hub := NewHub(pending, zap.NewNop())
	conn := &fakeConn{}
	client := hub.Register(7, conn, false)
	defer hub.Unregister(7, client)

	payload := encodedEvent(t, realtime.UserChannel(7), 3)
	require.NoError(t, hub.Publish(context.Background(), realtime.UserChannel(7), payload))

	frames := conn.Frames()
	require.Len(t, frames, 1)
	assert.Equal(t, websocket.TextMessage, frames[0].kind)
	assert.JSONEq(t, string(payload), string(frames[0].data))
	assert.Equal(t, 0, pending.Len())
}

func TestHubQueuesForOfflineUser(t *testing.T) {
	pending := newFakePending()
	hub := NewHub(pending, zap.NewNop())

	payload := encodedEvent(t, realtime.UserChannel(8), 42)
	require.NoError(t, hub.Publish(context.Background(), realtime.UserChannel(8), payload))

	rows, err := pending.GetPendingForUser(context.Background(), 8, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, uint(42), rows[0].MessageID)
	assert.Equal(t, string(payload), rows[0].Payload)
}

func TestHubQueuesUnparseablePayload(t *testing.T) {
	pending := newFakePending()
	core, logs := observer.New(zap.DebugLevel)
	hub := NewHub(pending, zap.New(core))

	require.NoError(t, hub.Publish(context.Background(), realtime.UserChannel(8), []byte("not json")))

	rows, err := pending.GetPendingForUser(context.Background(), 8, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Zero(t, rows[0].MessageID)
	assert.Equal(t, "not json", rows[0].Payload)
	assert.Equal(t, 1, logs.FilterMessage("queued payload is not an event envelope").Len())
}

func TestHubQueuesWhenWriteFails(t *testing.T) {
	pending := newFakePending()
	hub := NewHub(pending, zap.NewNop())
	hub.Register(9, &fakeConn{fail: true}, false)

	require.NoError(t, hub.Publish(context.Background(), realtime.UserChannel(9), encodedEvent(t, realtime.UserChannel(9), 1)))

	assert.False(t, hub.IsOnline(9))
	assert.Equal(t, 1, pending.Len())
}

func TestHubConversationChannelReachesSubscribersOnly(t *testing.T) {
	hub := NewHub(newFakePending(), zap.NewNop())
	subscribed, other := &fakeConn{}, &fakeConn{}
	c1 := hub.Register(1, subscribed, false)
	c2 := hub.Register(2, other, false)
	defer hub.Unregister(1, c1)
	defer hub.Unregister(2, c2)

	hub.Subscribe(1, 50)
	hub.Subscribe(3, 50) // offline, ignored

	require.NoError(t, hub.Publish(context.Background(), realtime.ConversationChannel(50), encodedEvent(t, realtime.ConversationChannel(50), 5)))

	assert.Len(t, subscribed.Frames(), 1)
	assert.Empty(t, other.Frames())
}

func TestHubUnregisterDropsSubscriptions(t *testing.T) {
	hub := NewHub(newFakePending(), zap.NewNop())
	conn := &fakeConn{}
	client := hub.Register(1, conn, false)
	hub.Subscribe(1, 50)
	hub.Unregister(1, client)

	again := &fakeConn{}
	c2 := hub.Register(1, again, false)
	defer hub.Unregister(1, c2)

	require.NoError(t, hub.Publish(context.Background(), realtime.ConversationChannel(50), []byte(`{}`)))
	assert.Empty(t, again.Frames())
}

func TestHubStaleUnregisterIgnored(t *testing.T) {
	hub := NewHub(newFakePending(), zap.NewNop())
	old := hub.Register(1, &fakeConn{}, false)
	current := hub.Register(1, &fakeConn{}, false)
	defer hub.Unregister(1, current)

	hub.Unregister(1, old)
	assert.True(t, hub.IsOnline(1))
	assert.Equal(t, 1, hub.Count())
}

func TestHubFlushPendingMessages(t *testing.T) {
	pending := newFakePending()
	hub := NewHub(pending, zap.NewNop())
	ctx := context.Background()

	for i := uint(1); i <= 3; i++ {
		require.NoError(t, hub.Publish(ctx, realtime.UserChannel(4), encodedEvent(t, realtime.UserChannel(4), i)))
	}
	require.Equal(t, 3, pending.Len())

	conn := &fakeConn{}
	client := hub.Register(4, conn, false)
	defer hub.Unregister(4, client)
	require.NoError(t, hub.FlushPendingMessages(ctx, 4))

	frames := conn.Frames()
	require.Len(t, frames, 1)
	var batch struct {
		Type     string            `json:"type"`
		Messages []json.RawMessage `json:"messages"`
		Count    int               `json:"count"`
	}
	require.NoError(t, json.Unmarshal(frames[0].data, &batch))
	assert.Equal(t, "batch", batch.Type)
	assert.Equal(t, 3, batch.Count)
	assert.Len(t, batch.Messages, 3)
	assert.Equal(t, 0, pending.Len())
}

func TestHubRetryPending(t *testing.T) {
	pending := newFakePending()
	hub := NewHub(pending, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, pending.Enqueue(ctx, 1, 10, `{"type":"message.created"}`, 0))
	require.NoError(t, pending.Enqueue(ctx, 2, 11, `{"type":"message.created"}`, 0))

	conn := &fakeConn{}
	client := hub.Register(1, conn, false)
	defer hub.Unregister(1, client)

	hub.retryPending(ctx)

	assert.Len(t, conn.Frames(), 1)
	rows, _ := pending.GetRetryable(ctx, 10)
	require.Len(t, rows, 1)
	assert.Equal(t, uint(2), rows[0].UserID)
	assert.Equal(t, 1, rows[0].Attempts)
	require.NotNil(t, rows[0].NextRetry)
}

func TestHubBackoff(t *testing.T) {
	hub := NewHub(nil, zap.NewNop())
	assert.Equal(t, 4*time.Second, hub.backoff(1))
	assert.Equal(t, 16*time.Second, hub.backoff(3))
	assert.Equal(t, time.Hour, hub.backoff(5))
}

func TestHubGzipLargePayloads(t *testing.T) {
	hub := NewHub(nil, zap.NewNop())
	conn := &fakeConn{}
	client := hub.Register(1, conn, true)
	defer hub.Unregister(1, client)

	big := make(map[string]string)
	for i := 0; i < 100; i++ {
		big[string(rune('a'+i%26))+string(rune('0'+i%10))] = "repeated body text repeated body text"
	}
	payload, err := json.Marshal(big)
	require.NoError(t, err)
	require.Greater(t, len(payload), 512)

	require.NoError(t, hub.SendToUser(context.Background(), 1, payload))

	frames := conn.Frames()
	require.Len(t, frames, 1)
	assert.Equal(t, websocket.BinaryMessage, frames[0].kind)
	inflated, err := DecompressMessage(frames[0].data)
	require.NoError(t, err)
	assert.JSONEq(t, string(payload), string(inflated))
}

type stubReceipts struct {
	changed bool
	err     error
	calls   []string
}

func (s *stubReceipts) MarkDelivered(ctx context.Context, caller service.Caller, messageID uint) (bool, error) {
	s.calls = append(s.calls, "delivered")
	return s.changed, s.err
}

func (s *stubReceipts) MarkRead(ctx context.Context, caller service.Caller, messageID uint) (bool, error) {
	s.calls = append(s.calls, "read")
	return s.changed, s.err
}

type stubMembers map[uint][]uint

func (m stubMembers) RequireMember(ctx context.Context, conversationID, userID uint) (*models.Conversation, error) {
	for _, uid := range m[conversationID] {
		if uid == userID {
			return &models.Conversation{ID: conversationID}, nil
		}
	}
	return nil, apperr.ErrNotAMember
}

func newMessageContext(t *testing.T, receipts ReceiptMarker, members MembershipChecker) (*MessageContext, *fakeConn) {
	t.Helper()
	hub := NewHub(nil, zap.NewNop())
	conn := &fakeConn{}
	client := hub.Register(1, conn, false)
	t.Cleanup(func() { hub.Unregister(1, client) })
	return &MessageContext{
		Ctx:           context.Background(),
		Caller:        service.Caller{UserID: 1},
		Client:        client,
		Hub:           hub,
		Receipts:      receipts,
		Conversations: members,
		Log:           zap.NewNop(),
	}, conn
}

func lastFrame(t *testing.T, conn *fakeConn) map[string]any {
	t.Helper()
	frames := conn.Frames()
	require.NotEmpty(t, frames)
	var out map[string]any
	require.NoError(t, json.Unmarshal(frames[len(frames)-1].data, &out))
	return out
}

func TestDeserializeFrames(t *testing.T) {
	msg, err := Deserialize([]byte(`{"type":"read","payload":{"message_id":12}}`))
	require.NoError(t, err)
	read, ok := msg.(*MessageRead)
	require.True(t, ok)
	assert.Equal(t, uint(12), read.MessageID)

	msg, err = Deserialize([]byte(`{"type":"ping"}`))
	require.NoError(t, err)
	assert.Equal(t, "ping", msg.GetType())

	_, err = Deserialize([]byte(`{"type":"chat","payload":{}}`))
	assert.Error(t, err)
}

func TestReceiptFrames(t *testing.T) {
	receipts := &stubReceipts{changed: true}
	ctx, conn := newMessageContext(t, receipts, stubMembers{})

	require.NoError(t, (&MessageDelivered{MessageID: 5}).Process(ctx))
	ack := lastFrame(t, conn)
	assert.Equal(t, "ack", ack["type"])
	assert.Equal(t, "delivered", ack["for"])
	assert.Equal(t, true, ack["changed"])

	require.NoError(t, (&MessageRead{MessageID: 5}).Process(ctx))
	assert.Equal(t, "read", lastFrame(t, conn)["for"])
	assert.Equal(t, []string{"delivered", "read"}, receipts.calls)

	require.NoError(t, (&MessageRead{}).Process(ctx))
	errFrame := lastFrame(t, conn)
	assert.Equal(t, "error", errFrame["type"])
	assert.Equal(t, string(apperr.CodeValidation), errFrame["code"])
}

func TestReceiptFrameReportsAppError(t *testing.T) {
	ctx, conn := newMessageContext(t, &stubReceipts{err: apperr.ErrMessageNotFound}, stubMembers{})

	require.NoError(t, (&MessageRead{MessageID: 99}).Process(ctx))
	errFrame := lastFrame(t, conn)
	assert.Equal(t, "error", errFrame["type"])
	assert.Equal(t, string(apperr.CodeMessageNotFound), errFrame["code"])
}

func TestSubscribeFrame(t *testing.T) {
	ctx, conn := newMessageContext(t, &stubReceipts{}, stubMembers{50: {1, 2}})

	require.NoError(t, (&MessageSubscribe{ConversationID: 51}).Process(ctx))
	assert.Equal(t, string(apperr.CodeNotAMember), lastFrame(t, conn)["code"])

	require.NoError(t, (&MessageSubscribe{ConversationID: 50}).Process(ctx))
	assert.Equal(t, "ack", lastFrame(t, conn)["type"])

	require.NoError(t, ctx.Hub.Publish(context.Background(), realtime.ConversationChannel(50), []byte(`{"type":"message.created"}`)))
	assert.Equal(t, "message.created", lastFrame(t, conn)["type"])
}

func TestPingFrame(t *testing.T) {
	ctx, conn := newMessageContext(t, &stubReceipts{}, stubMembers{})
	require.NoError(t, (&MessagePing{}).Process(ctx))
	assert.Equal(t, "pong", lastFrame(t, conn)["type"])
}
