package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/pkg/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

//go:generate mockgen -source=engine.go -destination=mocks/stores_mock.go -package=mocks

type RoomFinder interface {
	Get(ctx context.Context, id domain.RoomID) (*domain.Room, error)
}

type MembershipStore interface {
	IsMember(ctx context.Context, roomID domain.RoomID, userID domain.UserID) (bool, error)
	// AddMember must be idempotent for an existing (room, user) pair.
	AddMember(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error
}

type MessageStore interface {
	Append(ctx context.Context, roomID domain.RoomID, userID domain.UserID, text string) (domain.MessageID, time.Time, error)
}

type Options struct {
	MaxMessageLength        int // in runes
	RequireMembershipToSend bool
	// PersistTimeout bounds a single store call once the caller's context is
	// detached from the connection.
	PersistTimeout time.Duration
	Logger         *slog.Logger
}

type joinKey struct {
	room domain.RoomID
	user domain.UserID
}

// Engine runs join and send for live sessions.
type Engine struct {
	rooms    RoomFinder
	members  MembershipStore
	messages MessageStore
	registry *Registry

	joinLocks *keyedMutex[joinKey]
	sendLocks *keyedMutex[domain.RoomID]

	// живые сессии, включая не вошедшие ни в одну комнату
	sessMu   sync.Mutex
	sessions map[string]*Session
	shutdown bool

	opts   Options
	log    *slog.Logger
	tracer trace.Tracer
}

func NewEngine(rooms RoomFinder, members MembershipStore, messages MessageStore, registry *Registry, opts Options) *Engine {
	if opts.MaxMessageLength <= 0 {
		opts.MaxMessageLength = 4000
	}
	if opts.PersistTimeout <= 0 {
		opts.PersistTimeout = 5 * time.Second
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		rooms:     rooms,
		members:   members,
		messages:  messages,
		registry:  registry,
		joinLocks: newKeyedMutex[joinKey](),
		sendLocks: newKeyedMutex[domain.RoomID](),
		sessions:  make(map[string]*Session),
		opts:      opts,
		log:       log.With(slog.String("module", "chat.engine")),
		tracer:    otel.Tracer("github.com/cwrk-planet/chat-service/internal/chat"),
	}
}

func (e *Engine) Registry() *Registry { return e.registry }

// Attach starts tracking an authenticated session so Shutdown can close it.
// After Shutdown it returns ErrShuttingDown.
func (e *Engine) Attach(s *Session) error {
	if !s.Active() {
		return ErrSessionClosed
	}

	e.sessMu.Lock()
	defer e.sessMu.Unlock()
	if e.shutdown {
		return ErrShuttingDown
	}
	e.sessions[s.ID()] = s
	return nil
}

// Live reports how many attached sessions have not been disconnected yet.
func (e *Engine) Live() int {
	e.sessMu.Lock()
	defer e.sessMu.Unlock()
	return len(e.sessions)
}

// Join registers s as a listener of roomID. A group room adds the
// membership on first join; a private room requires it to exist already.
// Repeating a join acknowledges again without touching the registry.
func (e *Engine) Join(ctx context.Context, s *Session, roomID domain.RoomID) (err error) {
	ctx, span := e.tracer.Start(ctx, "chat.Join", trace.WithAttributes(
		attribute.Int64("chat.room_id", int64(roomID)),
		attribute.Int64("chat.user_id", int64(s.Identity().ID)),
	))
	defer func() { endSpan(span, err) }()

	if !s.Active() {
		return ErrSessionClosed
	}
	if roomID <= 0 {
		return fmt.Errorf("%w: room id", ErrInvalidInput)
	}

	room, err := e.rooms.Get(ctx, roomID)
	if err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			return ErrRoomNotFound
		}
		return fmt.Errorf("%w: get room %d: %w", ErrPersistence, roomID, err)
	}

	id := s.Identity()
	unlock, err := e.joinLocks.Lock(ctx, joinKey{room: roomID, user: id.ID})
	if err != nil {
		return fmt.Errorf("join lock: %w", err)
	}
	defer unlock()

	if err := e.ensureMember(ctx, room, id.ID); err != nil {
		return err
	}

	// Кэш отмечается до регистрации: если сессия закроется в этот момент,
	// Disconnect увидит комнату и уберёт её из реестра.
	fresh := s.markJoined(roomID)
	added, err := e.registry.Add(roomID, s, JoinedRoom{RoomID: roomID})
	if err != nil {
		if fresh {
			s.forget(roomID)
		}
		return err
	}

	logger.WithCtx(ctx, e.log).Debug("room joined",
		slog.String("session", s.ID()),
		slog.Int64("user", int64(id.ID)),
		slog.Int64("room", int64(roomID)),
		slog.Bool("registered", added))
	return nil
}

func (e *Engine) ensureMember(ctx context.Context, room *domain.Room, userID domain.UserID) error {
	ok, err := e.members.IsMember(ctx, room.ID, userID)
	if err != nil {
		return fmt.Errorf("%w: check membership: %w", ErrPersistence, err)
	}
	if ok {
		return nil
	}
	if !room.AutoJoin() {
		return ErrNotAMember
	}
	if err := e.members.AddMember(ctx, room.ID, userID); err != nil {
		return fmt.Errorf("%w: add member: %w", ErrPersistence, err)
	}
	return nil
}

// Send persists text as a message of roomID authored by s and then delivers
// it to every listener registered for the room at that moment. Nothing is
// delivered unless the append succeeded.
func (e *Engine) Send(ctx context.Context, s *Session, roomID domain.RoomID, text string) (msg domain.Message, err error) {
	ctx, span := e.tracer.Start(ctx, "chat.Send", trace.WithAttributes(
		attribute.Int64("chat.room_id", int64(roomID)),
		attribute.Int64("chat.user_id", int64(s.Identity().ID)),
	))
	defer func() { endSpan(span, err) }()

	if !s.Active() {
		return domain.Message{}, ErrSessionClosed
	}
	if err := e.validate(roomID, text); err != nil {
		return domain.Message{}, err
	}

	author := s.Identity()
	if e.opts.RequireMembershipToSend {
		ok, err := e.members.IsMember(ctx, roomID, author.ID)
		if err != nil {
			return domain.Message{}, fmt.Errorf("%w: check membership: %w", ErrPersistence, err)
		}
		if !ok {
			return domain.Message{}, ErrNotAMember
		}
	}

	// Отключение клиента не отменяет уже начатую запись.
	pctx, cancel := e.persistCtx(ctx)
	defer cancel()

	unlock, err := e.sendLocks.Lock(pctx, roomID)
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: send lock: %w", ErrPersistence, err)
	}
	defer unlock()

	id, createdAt, err := e.messages.Append(pctx, roomID, author.ID, text)
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: append message: %w", ErrPersistence, err)
	}

	msg = domain.Message{
		ID:        id,
		RoomID:    roomID,
		Author:    author,
		Text:      text,
		CreatedAt: createdAt,
	}
	n := e.registry.Broadcast(roomID, NewReceiveMessage(msg))

	span.SetAttributes(attribute.Int("chat.delivered", n))
	logger.WithCtx(ctx, e.log).Debug("message sent",
		slog.String("session", s.ID()),
		slog.Int64("room", int64(roomID)),
		slog.Int64("message", int64(id)),
		slog.Int("delivered", n))
	return msg, nil
}

func (e *Engine) validate(roomID domain.RoomID, text string) error {
	if roomID <= 0 || strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: room id and text", ErrInvalidInput)
	}
	if utf8.RuneCountInString(text) > e.opts.MaxMessageLength {
		return ErrMessageTooLong
	}
	return nil
}

func (e *Engine) persistCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	if dl, ok := ctx.Deadline(); ok {
		return context.WithDeadline(detached, dl)
	}
	return context.WithTimeout(detached, e.opts.PersistTimeout)
}

// Disconnect closes s and removes it from every room it joined. After it
// returns no broadcast reaches s.
func (e *Engine) Disconnect(s *Session) {
	s.Close()
	e.sessMu.Lock()
	delete(e.sessions, s.ID())
	e.sessMu.Unlock()

	rooms := s.Rooms()
	e.registry.RemoveAll(s, rooms)

	e.log.Debug("session disconnected",
		slog.String("session", s.ID()),
		slog.Int64("user", int64(s.Identity().ID)),
		slog.Int("rooms", len(rooms)))
}

// Shutdown closes every live session, joined to a room or not, and refuses
// new ones.
func (e *Engine) Shutdown() {
	e.sessMu.Lock()
	if e.shutdown {
		e.sessMu.Unlock()
		return
	}
	e.shutdown = true
	live := e.sessions
	e.sessions = make(map[string]*Session)
	e.sessMu.Unlock()

	e.registry.Close()
	for _, s := range live {
		s.Close()
	}
	e.log.Info("engine shut down", slog.Int("sessions", len(live)))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		if !Expected(err) {
			span.SetStatus(codes.Error, err.Error())
		}
	}
	span.End()
}
