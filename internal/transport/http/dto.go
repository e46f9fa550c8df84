package http

import (
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"
)

type CredentialsRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type UserItem struct {
	ID       domain.UserID `json:"id"`
	Username string        `json:"username"`
}

type AuthResponse struct {
	Message string   `json:"message"`
	Token   string   `json:"token"`
	User    UserItem `json:"user"`
}

type CreateRoomRequest struct {
	Name string `json:"name" validate:"max=100"`
	Type string `json:"type"` // всё, кроме private, считается group
}

type CreateRoomResponse struct {
	Message string        `json:"message"`
	RoomID  domain.RoomID `json:"roomId"`
}

type RoomItem struct {
	ID        domain.RoomID `json:"id"`
	Name      string        `json:"name"`
	Type      string        `json:"type"`
	CreatedAt time.Time     `json:"created_at"`
}

type MemberItem struct {
	RoomID   domain.RoomID `json:"room_id"`
	UserID   domain.UserID `json:"user_id"`
	JoinedAt time.Time     `json:"joined_at"`
}

type MessageItem struct {
	ID        domain.MessageID `json:"id"`
	RoomID    domain.RoomID    `json:"room_id"`
	UserID    domain.UserID    `json:"user_id"`
	Username  string           `json:"username"`
	Message   string           `json:"message"`
	CreatedAt time.Time        `json:"created_at"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func toRoomItems(rooms []domain.Room) []RoomItem {
	out := make([]RoomItem, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, RoomItem{ID: r.ID, Name: r.Name, Type: string(r.Kind), CreatedAt: r.CreatedAt})
	}
	return out
}
