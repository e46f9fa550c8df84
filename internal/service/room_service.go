package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/cwrk-planet/chat-service/internal/domain"
)

const (
	defaultRoomName = "Room"
	maxRoomName     = 100
)

type RoomRepository interface {
	Get(ctx context.Context, id domain.RoomID) (*domain.Room, error)
	Create(ctx context.Context, name string, kind domain.RoomKind, creator domain.UserID) (*domain.Room, error)
	List(ctx context.Context, limit int, cursor string) ([]domain.Room, string, error)
	ListForUser(ctx context.Context, userID domain.UserID) ([]domain.Room, error)
}

type MembershipRepository interface {
	IsMember(ctx context.Context, roomID domain.RoomID, userID domain.UserID) (bool, error)
	AddMember(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error
	Members(ctx context.Context, roomID domain.RoomID) ([]domain.Membership, error)
}

type MessageRepository interface {
	History(ctx context.Context, roomID domain.RoomID, after string, limit int) ([]domain.Message, string, error)
}

type RoomService struct {
	rooms    RoomRepository
	members  MembershipRepository
	messages MessageRepository
}

func NewRoomService(rooms RoomRepository, members MembershipRepository, messages MessageRepository) *RoomService {
	return &RoomService{rooms: rooms, members: members, messages: messages}
}

// CreateRoom создаёт комнату; создатель сразу становится участником.
// Любой тип, кроме "private", трактуется как group.
func (s *RoomService) CreateRoom(ctx context.Context, name, kind string, creator domain.UserID) (*domain.Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = defaultRoomName
	}
	if utf8.RuneCountInString(name) > maxRoomName {
		return nil, ErrNameTooLong
	}

	room, err := s.rooms.Create(ctx, name, domain.ParseRoomKind(kind), creator)
	if err != nil {
		return nil, fmt.Errorf("roomRepo.Create: %w", err)
	}
	return room, nil
}

// ListRooms возвращает список комнат с курсорной пагинацией.
func (s *RoomService) ListRooms(ctx context.Context, limit int, cursor string) ([]domain.Room, string, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return s.rooms.List(ctx, limit, cursor)
}

func (s *RoomService) MyRooms(ctx context.Context, userID domain.UserID) ([]domain.Room, error) {
	return s.rooms.ListForUser(ctx, userID)
}

// JoinRoom adds a durable membership without registering any live session.
// It reports whether the user was already a member.
func (s *RoomService) JoinRoom(ctx context.Context, roomID domain.RoomID, userID domain.UserID) (already bool, err error) {
	room, err := s.rooms.Get(ctx, roomID)
	if err != nil {
		return false, err
	}

	ok, err := s.members.IsMember(ctx, roomID, userID)
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}
	if !room.AutoJoin() {
		return false, domain.ErrNotAMember
	}
	if err := s.members.AddMember(ctx, roomID, userID); err != nil {
		return false, err
	}
	return false, nil
}

// Members lists the room's members; only a member may see them.
func (s *RoomService) Members(ctx context.Context, roomID domain.RoomID, requester domain.UserID) ([]domain.Membership, error) {
	if _, err := s.rooms.Get(ctx, roomID); err != nil {
		return nil, err
	}
	ok, err := s.members.IsMember(ctx, roomID, requester)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrNotAMember
	}
	return s.members.Members(ctx, roomID)
}

// History returns the room's messages in persistence order. An unknown room
// simply has no history.
func (s *RoomService) History(ctx context.Context, roomID domain.RoomID, after string, limit int) ([]domain.Message, string, error) {
	if roomID <= 0 {
		return nil, "", fmt.Errorf("%w: room id", domain.ErrInvalidArg)
	}
	return s.messages.History(ctx, roomID, after, limit)
}
