package chat

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/cwrk-planet/chat-service/internal/domain"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

type State int32

const (
	StateConnecting State = iota
	StateAuthenticated
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// IdentityVerifier turns a credential token into a verified identity.
type IdentityVerifier interface {
	Verify(token string) (domain.Identity, error)
}

// Session is the runtime state of one live connection. Outbound events go
// through a bounded FIFO queue drained by the transport writer.
type Session struct {
	id       string
	state    atomic.Int32
	identity domain.Identity // written once, before the session turns Active

	mu     sync.RWMutex // guards closed and sends on out
	closed bool
	out    chan Event
	done   chan struct{}

	roomsMu sync.Mutex
	rooms   map[domain.RoomID]struct{}
}

func NewSession(queueSize int) *Session {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Session{
		id:    uuid.NewString(),
		out:   make(chan Event, queueSize),
		done:  make(chan struct{}),
		rooms: make(map[domain.RoomID]struct{}),
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) State() State { return State(s.state.Load()) }

func (s *Session) Active() bool { return s.State() == StateActive }

func (s *Session) Identity() domain.Identity { return s.identity }

// Authenticate runs the handshake: Connecting → Authenticated → Active on
// success, Connecting → Closed otherwise. The verifier error is returned as is.
func (s *Session) Authenticate(token string, v IdentityVerifier) error {
	if st := s.State(); st != StateConnecting {
		return fmt.Errorf("%w: authenticate in state %s", ErrAuth, st)
	}

	id, err := v.Verify(token)
	if err != nil {
		s.Close()
		return err
	}

	s.identity = id
	s.state.Store(int32(StateAuthenticated))
	s.state.Store(int32(StateActive))
	return nil
}

// Deliver enqueues ev without blocking.
func (s *Session) Deliver(ev Event) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrSessionClosed
	}
	select {
	case s.out <- ev:
		return nil
	default:
		return fmt.Errorf("%w: session %s queue full", ErrDelivery, s.id)
	}
}

// Outbound is closed when the session closes; queued events are still
// readable until drained.
func (s *Session) Outbound() <-chan Event { return s.out }

// Done is closed when the session closes.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.state.Store(int32(StateClosed))
	close(s.out)
	close(s.done)
}

// markJoined records roomID in the joined-room cache; it reports false if
// the room was already there.
func (s *Session) markJoined(roomID domain.RoomID) bool {
	s.roomsMu.Lock()
	defer s.roomsMu.Unlock()

	if _, ok := s.rooms[roomID]; ok {
		return false
	}
	s.rooms[roomID] = struct{}{}
	return true
}

func (s *Session) forget(roomID domain.RoomID) {
	s.roomsMu.Lock()
	delete(s.rooms, roomID)
	s.roomsMu.Unlock()
}

func (s *Session) HasJoined(roomID domain.RoomID) bool {
	s.roomsMu.Lock()
	defer s.roomsMu.Unlock()
	_, ok := s.rooms[roomID]
	return ok
}

// Rooms returns the joined-room cache, sorted.
func (s *Session) Rooms() []domain.RoomID {
	s.roomsMu.Lock()
	ids := lo.Keys(s.rooms)
	s.roomsMu.Unlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
