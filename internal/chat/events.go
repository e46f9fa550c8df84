package chat

import (
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"
)

type EventType string

const (
	TypeJoinRoom       EventType = "join_room"
	TypeSendMessage    EventType = "send_message"
	TypeJoinedRoom     EventType = "joined_room"
	TypeReceiveMessage EventType = "receive_message"
	TypeError          EventType = "error"
)

// Event is an outbound, server → client message. Each kind has a fixed schema.
type Event interface {
	Type() EventType
}

type JoinedRoom struct {
	RoomID domain.RoomID `json:"roomId"`
}

func (JoinedRoom) Type() EventType { return TypeJoinedRoom }

type ReceiveMessage struct {
	ID        domain.MessageID `json:"id"`
	RoomID    domain.RoomID    `json:"room_id"`
	UserID    domain.UserID    `json:"user_id"`
	Username  string           `json:"username"`
	Message   string           `json:"message"`
	CreatedAt time.Time        `json:"created_at"`
}

func (ReceiveMessage) Type() EventType { return TypeReceiveMessage }

// NewReceiveMessage builds the broadcast event from a persisted message; the
// timestamp is always the store's.
func NewReceiveMessage(m domain.Message) ReceiveMessage {
	return ReceiveMessage{
		ID:        m.ID,
		RoomID:    m.RoomID,
		UserID:    m.Author.ID,
		Username:  m.Author.Username,
		Message:   m.Text,
		CreatedAt: m.CreatedAt,
	}
}

type Failure struct {
	Message string `json:"message"`
}

func (Failure) Type() EventType { return TypeError }

func NewFailure(op Op, err error) Failure {
	return Failure{Message: ClientMessage(op, err)}
}
