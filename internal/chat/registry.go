package chat

import (
	"errors"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/cwrk-planet/chat-service/internal/domain"

	"github.com/samber/lo"
)

// Listener is anything the registry can fan events out to.
type Listener interface {
	ID() string
	// Deliver must not block; it returns ErrSessionClosed once the listener
	// is closed and ErrDelivery when it cannot accept more events.
	Deliver(Event) error
	Closed() bool
	Close()
}

type roomSet struct {
	mu        sync.RWMutex
	listeners map[string]Listener
	dead      atomic.Bool // set under mu once the set is pruned
}

// Registry maps a room to the listeners currently registered for it.
// Each room has its own lock; the outer lock only guards the index and is
// never held while a room lock is taken.
type Registry struct {
	mu     sync.Mutex
	rooms  map[domain.RoomID]*roomSet
	closed bool
	log    *slog.Logger
}

func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		rooms: make(map[domain.RoomID]*roomSet),
		log:   log.With(slog.String("module", "chat.registry")),
	}
}

func (r *Registry) acquire(roomID domain.RoomID) (*roomSet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrRegistryClosed
	}
	rs, ok := r.rooms[roomID]
	if !ok || rs.dead.Load() {
		rs = &roomSet{listeners: make(map[string]Listener)}
		r.rooms[roomID] = rs
	}
	return rs, nil
}

func (r *Registry) lookup(roomID domain.RoomID) *roomSet {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rooms[roomID]
}

// Add registers l for roomID and reports whether it was newly added. The ack
// events are enqueued to l while the room is locked, so l never receives a
// room broadcast ahead of them. A listener that cannot take the ack is closed
// and left unregistered.
func (r *Registry) Add(roomID domain.RoomID, l Listener, ack ...Event) (bool, error) {
	for {
		rs, err := r.acquire(roomID)
		if err != nil {
			return false, err
		}

		rs.mu.Lock()
		if rs.dead.Load() {
			// pruned between acquire and lock
			rs.mu.Unlock()
			continue
		}
		if l.Closed() {
			rs.mu.Unlock()
			return false, ErrSessionClosed
		}

		_, exists := rs.listeners[l.ID()]
		var ackErr error
		for _, ev := range ack {
			if ackErr = l.Deliver(ev); ackErr != nil {
				break
			}
		}
		if ackErr != nil {
			delete(rs.listeners, l.ID())
			empty := len(rs.listeners) == 0
			if empty {
				rs.dead.Store(true)
			}
			rs.mu.Unlock()

			if empty {
				r.unindex(roomID, rs)
			}
			r.log.Warn("ack not delivered, closing listener",
				slog.String("listener", l.ID()),
				slog.Int64("room", int64(roomID)),
				slog.Any("err", ackErr))
			l.Close()
			return false, ackErr
		}
		if !exists {
			rs.listeners[l.ID()] = l
		}
		rs.mu.Unlock()

		if !exists {
			r.log.Debug("listener added", slog.String("listener", l.ID()), slog.Int64("room", int64(roomID)))
		}
		return !exists, nil
	}
}

func (r *Registry) unindex(roomID domain.RoomID, rs *roomSet) {
	r.mu.Lock()
	if r.rooms[roomID] == rs {
		delete(r.rooms, roomID)
	}
	r.mu.Unlock()
}

// Remove unregisters l from roomID and prunes the room when it empties.
func (r *Registry) Remove(roomID domain.RoomID, l Listener) {
	rs := r.lookup(roomID)
	if rs == nil {
		return
	}

	rs.mu.Lock()
	delete(rs.listeners, l.ID())
	empty := len(rs.listeners) == 0
	if empty {
		rs.dead.Store(true)
	}
	rs.mu.Unlock()

	if empty {
		r.unindex(roomID, rs)
	}
}

// RemoveAll unregisters l from every listed room.
func (r *Registry) RemoveAll(l Listener, rooms []domain.RoomID) {
	for _, id := range rooms {
		r.Remove(id, l)
	}
}

// Snapshot returns the listeners registered for roomID at this instant.
func (r *Registry) Snapshot(roomID domain.RoomID) []Listener {
	rs := r.lookup(roomID)
	if rs == nil {
		return nil
	}

	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return lo.Values(rs.listeners)
}

// Broadcast delivers ev to every listener in the room's snapshot and returns
// how many accepted it. A listener that cannot keep up is closed; its failure
// never affects the others.
func (r *Registry) Broadcast(roomID domain.RoomID, ev Event) int {
	delivered := 0
	for _, l := range r.Snapshot(roomID) {
		err := l.Deliver(ev)
		switch {
		case err == nil:
			delivered++
		case errors.Is(err, ErrSessionClosed):
			// disconnected after the snapshot
		default:
			r.log.Warn("delivery failed, closing listener",
				slog.String("listener", l.ID()),
				slog.Int64("room", int64(roomID)),
				slog.Any("err", err))
			l.Close()
		}
	}
	return delivered
}

func (r *Registry) Len(roomID domain.RoomID) int {
	rs := r.lookup(roomID)
	if rs == nil {
		return 0
	}
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return len(rs.listeners)
}

// Rooms lists the rooms that currently have at least one listener.
func (r *Registry) Rooms() []domain.RoomID {
	r.mu.Lock()
	ids := lo.Keys(r.rooms)
	r.mu.Unlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Close closes every live listener and refuses further registrations.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	sets := lo.Values(r.rooms)
	r.rooms = make(map[domain.RoomID]*roomSet)
	r.mu.Unlock()

	var all []Listener
	for _, rs := range sets {
		rs.mu.Lock()
		rs.dead.Store(true)
		all = append(all, lo.Values(rs.listeners)...)
		rs.listeners = make(map[string]Listener)
		rs.mu.Unlock()
	}

	all = lo.UniqBy(all, func(l Listener) string { return l.ID() })
	for _, l := range all {
		l.Close()
	}
	r.log.Info("registry closed", slog.Int("listeners", len(all)))
}
