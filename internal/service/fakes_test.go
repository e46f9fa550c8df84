package service

import (
	"context"
	"sync"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"
)

type memUsers struct {
	mu     sync.Mutex
	byName map[string]*domain.User
	nextID domain.UserID
	err    error
}

func newMemUsers() *memUsers {
	return &memUsers{byName: make(map[string]*domain.User)}
}

func (m *memUsers) Create(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.byName[u.Username]; ok {
		return domain.ErrAlreadyExists
	}
	m.nextID++
	u.ID = m.nextID
	u.CreatedAt = time.Now()
	cp := *u
	m.byName[u.Username] = &cp
	return nil
}

func (m *memUsers) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	u, ok := m.byName[username]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) ExistsByUsername(_ context.Context, username string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	_, ok := m.byName[username]
	return ok, nil
}

type memRooms struct {
	mu       sync.Mutex
	rooms    map[domain.RoomID]*domain.Room
	members  map[domain.RoomID][]domain.Membership
	messages map[domain.RoomID][]domain.Message
	nextID   domain.RoomID
}

func newMemRooms() *memRooms {
	return &memRooms{
		rooms:    make(map[domain.RoomID]*domain.Room),
		members:  make(map[domain.RoomID][]domain.Membership),
		messages: make(map[domain.RoomID][]domain.Message),
	}
}

func (m *memRooms) Get(_ context.Context, id domain.RoomID) (*domain.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[id]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memRooms) Create(_ context.Context, name string, kind domain.RoomKind, creator domain.UserID) (*domain.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	r := &domain.Room{ID: m.nextID, Name: name, Kind: kind, CreatedAt: time.Now()}
	m.rooms[r.ID] = r
	m.members[r.ID] = append(m.members[r.ID], domain.Membership{RoomID: r.ID, UserID: creator, JoinedAt: r.CreatedAt})
	cp := *r
	return &cp, nil
}

func (m *memRooms) List(_ context.Context, limit int, _ string) ([]domain.Room, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Room
	for id := m.nextID; id > 0 && len(out) < limit; id-- {
		if r, ok := m.rooms[id]; ok {
			out = append(out, *r)
		}
	}
	return out, "", nil
}

func (m *memRooms) ListForUser(_ context.Context, userID domain.UserID) ([]domain.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Room
	for id := m.nextID; id > 0; id-- {
		for _, mb := range m.members[id] {
			if mb.UserID == userID {
				out = append(out, *m.rooms[id])
			}
		}
	}
	return out, nil
}

func (m *memRooms) IsMember(_ context.Context, roomID domain.RoomID, userID domain.UserID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mb := range m.members[roomID] {
		if mb.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memRooms) AddMember(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error {
	if ok, _ := m.IsMember(ctx, roomID, userID); ok {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.members[roomID] = append(m.members[roomID], domain.Membership{RoomID: roomID, UserID: userID, JoinedAt: time.Now()})
	return nil
}

func (m *memRooms) Members(_ context.Context, roomID domain.RoomID) ([]domain.Membership, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Membership(nil), m.members[roomID]...), nil
}

func (m *memRooms) History(_ context.Context, roomID domain.RoomID, _ string, _ int) ([]domain.Message, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Message(nil), m.messages[roomID]...), "", nil
}
