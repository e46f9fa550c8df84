package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"

	"github.com/stretchr/testify/require"
)

// memStore is an in-memory room, membership and message store.
type memStore struct {
	mu       sync.Mutex
	rooms    map[domain.RoomID]*domain.Room
	members  map[joinKey]struct{}
	inserts  int
	messages []domain.Message
	nextID   domain.MessageID
	clock    time.Time

	appendDelay time.Duration
}

func newMemStore() *memStore {
	return &memStore{
		rooms:   make(map[domain.RoomID]*domain.Room),
		members: make(map[joinKey]struct{}),
		clock:   time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (m *memStore) addRoom(id domain.RoomID, name string, kind domain.RoomKind, creator domain.UserID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rooms[id] = &domain.Room{ID: id, Name: name, Kind: kind, CreatedAt: m.clock}
	if creator > 0 {
		m.members[joinKey{room: id, user: creator}] = struct{}{}
	}
}

func (m *memStore) Get(_ context.Context, id domain.RoomID) (*domain.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[id]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) IsMember(_ context.Context, roomID domain.RoomID, userID domain.UserID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.members[joinKey{room: roomID, user: userID}]
	return ok, nil
}

func (m *memStore) AddMember(_ context.Context, roomID domain.RoomID, userID domain.UserID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := joinKey{room: roomID, user: userID}
	if _, ok := m.members[k]; ok {
		return nil
	}
	m.members[k] = struct{}{}
	m.inserts++
	return nil
}

func (m *memStore) Append(_ context.Context, roomID domain.RoomID, userID domain.UserID, text string) (domain.MessageID, time.Time, error) {
	if m.appendDelay > 0 {
		time.Sleep(m.appendDelay)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.clock = m.clock.Add(time.Millisecond)
	m.messages = append(m.messages, domain.Message{
		ID:        m.nextID,
		RoomID:    roomID,
		Author:    domain.Identity{ID: userID},
		Text:      text,
		CreatedAt: m.clock,
	})
	return m.nextID, m.clock, nil
}

func (m *memStore) history(roomID domain.RoomID) []domain.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Message
	for _, msg := range m.messages {
		if msg.RoomID == roomID {
			out = append(out, msg)
		}
	}
	return out
}

func (m *memStore) memberInserts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inserts
}

// tokenVerifier accepts tokens it was told about.
type tokenVerifier map[string]domain.Identity

func (v tokenVerifier) Verify(token string) (domain.Identity, error) {
	id, ok := v[token]
	if !ok {
		return domain.Identity{}, domain.ErrUnauthorized
	}
	return id, nil
}

var (
	alice = domain.Identity{ID: 1, Username: "alice"}
	bob   = domain.Identity{ID: 2, Username: "bob"}
	carol = domain.Identity{ID: 3, Username: "carol"}
)

func activeSession(t *testing.T, id domain.Identity, queue int) *Session {
	t.Helper()
	s := NewSession(queue)
	require.NoError(t, s.Authenticate("tok", tokenVerifier{"tok": id}))
	return s
}

// drain returns everything queued on s right now.
func drain(s *Session) []Event {
	var out []Event
	for {
		select {
		case ev, ok := <-s.Outbound():
			if !ok {
				return out
			}
			out = append(out, ev)
		default:
			return out
		}
	}
}

func receivedMessages(evs []Event) []ReceiveMessage {
	var out []ReceiveMessage
	for _, ev := range evs {
		if rm, ok := ev.(ReceiveMessage); ok {
			out = append(out, rm)
		}
	}
	return out
}
