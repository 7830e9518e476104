package service

import (
	"context"
	"testing"

	"github.com/gekymedia/gekychat-sub007/internal/testutil"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

// MockTransport records published events.
type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) Name() string { return "mock" }

func (m *MockTransport) Publish(ctx context.Context, channel string, payload []byte) error {
	args := m.Called(channel, payload)
	return args.Error(0)
}

// Channels lists the channels published to, in order.
func (m *MockTransport) Channels() []string {
	var out []string
	for _, c := range m.Calls {
		if c.Method == "Publish" {
			out = append(out, c.Arguments.String(0))
		}
	}
	return out
}

type fixture struct {
	h             *testutil.TestHelper
	store         *testutil.MemStore
	transport     *MockTransport
	identity      *IdentityService
	conversations *ConversationService
	statuses      *StatusService
	messages      *MessageService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	h := testutil.NewTestHelper(t)
	tr := &MockTransport{}
	tr.On("Publish", mock.Anything, mock.Anything).Return(nil).Maybe()

	log := zap.NewNop()
	fanout := NewFanoutService(tr, log)
	identity := NewIdentityService(h.Store, nil, "233", log)
	conversations := NewConversationService(h.Store, nil, 3, log)
	statuses := NewStatusService(h.Store, nil, fanout, 3, log)
	messages := NewMessageService(MessageServiceDeps{
		Store:         h.Store,
		Identity:      identity,
		Conversations: conversations,
		Statuses:      statuses,
		Fanout:        fanout,
		MaxLength:     4000,
		RetryAttempts: 3,
		Logger:        log,
	})

	return &fixture{
		h:             h,
		store:         h.Store,
		transport:     tr,
		identity:      identity,
		conversations: conversations,
		statuses:      statuses,
		messages:      messages,
	}
}
