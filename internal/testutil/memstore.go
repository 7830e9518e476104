package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gekymedia/gekychat-sub007/internal/models"
	"github.com/gekymedia/gekychat-sub007/internal/repository"
	"github.com/gekymedia/gekychat-sub007/internal/validation"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

type pairKey struct{ low, high uint }

type refKey struct {
	scope models.RefScope
	owner uint
	ref   string
}

type statusKey struct {
	kind      models.SubjectKind
	messageID uint
	userID    uint
}

type memData struct {
	users         map[uint]models.User
	phones        map[string]uint
	clients       map[uint]models.PlatformClient
	clientIDs     map[string]uint
	conversations map[uint]models.Conversation
	pairs         map[pairKey]uint
	messages      map[uint]models.Message
	refs          map[refKey]uint
	statuses      map[statusKey]models.MessageStatus
	nextID        uint
}

func newMemData() *memData {
	return &memData{
		users:         map[uint]models.User{},
		phones:        map[string]uint{},
		clients:       map[uint]models.PlatformClient{},
		clientIDs:     map[string]uint{},
		conversations: map[uint]models.Conversation{},
		pairs:         map[pairKey]uint{},
		messages:      map[uint]models.Message{},
		refs:          map[refKey]uint{},
		statuses:      map[statusKey]models.MessageStatus{},
	}
}

func (d *memData) clone() *memData {
	c := newMemData()
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.phones {
		c.phones[k] = v
	}
	for k, v := range d.clients {
		c.clients[k] = v
	}
	for k, v := range d.clientIDs {
		c.clientIDs[k] = v
	}
	for k, v := range d.conversations {
		c.conversations[k] = v
	}
	for k, v := range d.pairs {
		c.pairs[k] = v
	}
	for k, v := range d.messages {
		c.messages[k] = v
	}
	for k, v := range d.refs {
		c.refs[k] = v
	}
	for k, v := range d.statuses {
		c.statuses[k] = v
	}
	c.nextID = d.nextID
	return c
}

func (d *memData) id() uint {
	d.nextID++
	return d.nextID
}

// MemStore is an in-memory repository.Store that enforces the same unique
// keys as the Postgres schema. Transactions are serialized and rolled back on
// error, which is enough to exercise concurrent callers under -race.
type MemStore struct {
	mu   *sync.Mutex
	data **memData
	inTx bool

	// TransientFailures makes the next N top-level transactions fail with a
	// serialization error before fn runs.
	TransientFailures *int
}

func NewMemStore() *MemStore {
	d := newMemData()
	failures := 0
	return &MemStore{mu: &sync.Mutex{}, data: &d, TransientFailures: &failures}
}

// FailNextTransactions arms n serialization failures.
func (s *MemStore) FailNextTransactions(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	*s.TransientFailures = n
}

func (s *MemStore) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *MemStore) d() *memData { return *s.data }

func (s *MemStore) Users() repository.UserRepositoryInterface { return memUsers{s} }

func (s *MemStore) PlatformClients() repository.PlatformClientRepositoryInterface {
	return memClients{s}
}

func (s *MemStore) Conversations() repository.ConversationRepositoryInterface {
	return memConversations{s}
}

func (s *MemStore) Messages() repository.MessageRepositoryInterface { return memMessages{s} }

func (s *MemStore) Statuses() repository.MessageStatusRepositoryInterface { return memStatuses{s} }

func (s *MemStore) Transaction(ctx context.Context, fn func(tx repository.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if *s.TransientFailures > 0 {
		*s.TransientFailures--
		return &pgconn.PgError{Code: "40001", Message: "could not serialize access"}
	}

	snapshot := s.d().clone()
	tx := &MemStore{mu: s.mu, data: s.data, inTx: true, TransientFailures: s.TransientFailures}
	if err := fn(tx); err != nil {
		*s.data = snapshot
		return err
	}
	return nil
}

// Counts reports row totals for assertions.
func (s *MemStore) Counts() (users, conversations, messages, statuses int) {
	defer s.lock()()
	d := s.d()
	return len(d.users), len(d.conversations), len(d.messages), len(d.statuses)
}

type memUsers struct{ s *MemStore }

func (r memUsers) Create(ctx context.Context, user *models.User) error {
	defer r.s.lock()()
	d := r.s.d()
	if _, ok := d.phones[user.Phone]; ok {
		return gorm.ErrDuplicatedKey
	}
	now := time.Now()
	user.ID = d.id()
	user.PhoneSuffix = validation.PhoneSuffix(user.Phone)
	user.CreatedAt, user.UpdatedAt = now, now
	d.users[user.ID] = *user
	d.phones[user.Phone] = user.ID
	return nil
}

func (r memUsers) FindByID(ctx context.Context, id uint) (*models.User, error) {
	defer r.s.lock()()
	u, ok := r.s.d().users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &u, nil
}

func (r memUsers) FindByPhone(ctx context.Context, phone string) (*models.User, error) {
	defer r.s.lock()()
	d := r.s.d()
	id, ok := d.phones[phone]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	u := d.users[id]
	return &u, nil
}

func (r memUsers) FindByPhoneSuffix(ctx context.Context, suffix string, limit int) ([]models.User, error) {
	defer r.s.lock()()
	var out []models.User
	for _, u := range r.s.d().users {
		if u.PhoneSuffix == suffix {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memClients struct{ s *MemStore }

func (r memClients) Create(ctx context.Context, client *models.PlatformClient) error {
	defer r.s.lock()()
	d := r.s.d()
	if _, ok := d.clientIDs[client.ClientID]; ok {
		return gorm.ErrDuplicatedKey
	}
	client.ID = d.id()
	client.CreatedAt = time.Now()
	d.clients[client.ID] = *client
	d.clientIDs[client.ClientID] = client.ID
	return nil
}

func (r memClients) FindByClientID(ctx context.Context, clientID string) (*models.PlatformClient, error) {
	defer r.s.lock()()
	d := r.s.d()
	id, ok := d.clientIDs[clientID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	c := d.clients[id]
	c.Owner = d.users[c.OwnerUserID]
	return &c, nil
}

type memConversations struct{ s *MemStore }

func (r memConversations) InsertIfAbsent(ctx context.Context, low, high, createdBy uint) (uint, bool, error) {
	defer r.s.lock()()
	d := r.s.d()
	key := pairKey{low, high}
	if _, ok := d.pairs[key]; ok {
		return 0, false, nil
	}
	now := time.Now()
	conv := models.Conversation{ID: d.id(), UserLowID: low, UserHighID: high, CreatedBy: createdBy, CreatedAt: now, UpdatedAt: now}
	d.conversations[conv.ID] = conv
	d.pairs[key] = conv.ID
	return conv.ID, true, nil
}

func (r memConversations) FindByPair(ctx context.Context, low, high uint) (*models.Conversation, error) {
	defer r.s.lock()()
	d := r.s.d()
	id, ok := d.pairs[pairKey{low, high}]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	c := d.conversations[id]
	return &c, nil
}

func (r memConversations) FindByID(ctx context.Context, id uint) (*models.Conversation, error) {
	defer r.s.lock()()
	c, ok := r.s.d().conversations[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &c, nil
}

func (r memConversations) TouchLastMessage(ctx context.Context, id uint, at time.Time) (bool, error) {
	defer r.s.lock()()
	d := r.s.d()
	c, ok := d.conversations[id]
	if !ok || (c.LastMessageAt != nil && !c.LastMessageAt.Before(at)) {
		return false, nil
	}
	c.LastMessageAt = &at
	d.conversations[id] = c
	return true, nil
}

type memMessages struct{ s *MemStore }

func (r memMessages) Create(ctx context.Context, message *models.Message) error {
	defer r.s.lock()()
	return r.insert(message)
}

func (r memMessages) insert(message *models.Message) error {
	d := r.s.d()
	scope, owner, hasRef := message.IdempotencyKey()
	if hasRef {
		if _, ok := d.refs[refKey{scope, owner, *message.ExternalRef}]; ok {
			return gorm.ErrDuplicatedKey
		}
	}
	now := time.Now()
	message.ID = d.id()
	if message.CreatedAt.IsZero() {
		message.CreatedAt = now
	}
	message.UpdatedAt = now
	d.messages[message.ID] = *message
	if hasRef {
		d.refs[refKey{scope, owner, *message.ExternalRef}] = message.ID
	}
	return nil
}

func (r memMessages) CreateIdempotent(ctx context.Context, message *models.Message) (*models.Message, bool, error) {
	defer r.s.lock()()
	d := r.s.d()
	if scope, owner, ok := message.IdempotencyKey(); ok {
		if id, ok := d.refs[refKey{scope, owner, *message.ExternalRef}]; ok {
			m := d.messages[id]
			return &m, false, nil
		}
	}
	if err := r.insert(message); err != nil {
		return nil, false, err
	}
	return message, true, nil
}

func (r memMessages) FindByID(ctx context.Context, id uint) (*models.Message, error) {
	defer r.s.lock()()
	m, ok := r.s.d().messages[id]
	if !ok || m.DeletedAt != nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &m, nil
}

func (r memMessages) FindByExternalRef(ctx context.Context, scope models.RefScope, ownerID uint, externalRef string) (*models.Message, error) {
	defer r.s.lock()()
	d := r.s.d()
	id, ok := d.refs[refKey{scope, ownerID, externalRef}]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	m := d.messages[id]
	return &m, nil
}

type memStatuses struct{ s *MemStore }

func (r memStatuses) SeedPending(ctx context.Context, kind models.SubjectKind, messageID uint, userIDs []uint) error {
	defer r.s.lock()()
	d := r.s.d()
	now := time.Now()
	for _, uid := range userIDs {
		key := statusKey{kind, messageID, uid}
		if _, ok := d.statuses[key]; ok {
			continue
		}
		d.statuses[key] = models.MessageStatus{
			SubjectKind: kind, MessageID: messageID, UserID: uid,
			State: models.StatePending, CreatedAt: now, UpdatedAt: now,
		}
	}
	return nil
}

func (r memStatuses) Advance(ctx context.Context, kind models.SubjectKind, messageID, userID uint, state models.DeliveryState, at time.Time) (bool, error) {
	defer r.s.lock()()
	d := r.s.d()
	key := statusKey{kind, messageID, userID}
	st, ok := d.statuses[key]
	if !ok {
		st = models.MessageStatus{SubjectKind: kind, MessageID: messageID, UserID: userID, CreatedAt: at}
	} else if st.State >= state {
		return false, nil
	}
	st.State = state
	if st.DeliveredAt == nil {
		st.DeliveredAt = &at
	}
	if state >= models.StateRead && st.ReadAt == nil {
		st.ReadAt = &at
	}
	st.UpdatedAt = at
	d.statuses[key] = st
	return true, nil
}

func (r memStatuses) MarkDeleted(ctx context.Context, kind models.SubjectKind, messageID, userID uint, at time.Time) (bool, error) {
	defer r.s.lock()()
	d := r.s.d()
	key := statusKey{kind, messageID, userID}
	st, ok := d.statuses[key]
	if !ok {
		st = models.MessageStatus{SubjectKind: kind, MessageID: messageID, UserID: userID, CreatedAt: at}
	} else if st.DeletedAt != nil {
		return false, nil
	}
	st.DeletedAt = &at
	st.UpdatedAt = at
	d.statuses[key] = st
	return true, nil
}

func (r memStatuses) Find(ctx context.Context, kind models.SubjectKind, messageID, userID uint) (*models.MessageStatus, error) {
	defer r.s.lock()()
	st, ok := r.s.d().statuses[statusKey{kind, messageID, userID}]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &st, nil
}

func (r memStatuses) Tally(ctx context.Context, kind models.SubjectKind, messageID, senderID uint) (repository.StatusTally, error) {
	defer r.s.lock()()
	var t repository.StatusTally
	for key, st := range r.s.d().statuses {
		if key.kind != kind || key.messageID != messageID {
			continue
		}
		if st.State >= models.StateDelivered {
			t.DeliveredTotal++
			if senderID != 0 && st.UserID == senderID {
				t.SenderDelivered = true
			}
		}
		if st.State >= models.StateRead {
			t.ReadTotal++
			if senderID != 0 && st.UserID == senderID {
				t.SenderRead = true
			}
		}
	}
	return t, nil
}
