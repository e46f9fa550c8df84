package chat

import (
	"errors"
	"fmt"

	"github.com/cwrk-planet/chat-service/internal/domain"
)

var (
	ErrAuth           = domain.ErrUnauthorized
	ErrRoomNotFound   = domain.ErrRoomNotFound
	ErrNotAMember     = domain.ErrNotAMember
	ErrInvalidInput   = errors.New("invalid input")
	ErrMessageTooLong = fmt.Errorf("%w: message too long", ErrInvalidInput)
	ErrUnknownOp      = errors.New("unknown operation")
	ErrPersistence    = errors.New("persistence failure")
	ErrDelivery       = errors.New("delivery failure")
	ErrSessionClosed  = errors.New("session closed")
	ErrRegistryClosed = errors.New("registry closed")
	ErrShuttingDown   = errors.New("shutting down")
)

type Op string

const (
	OpJoin Op = "join_room"
	OpSend Op = "send_message"
)

// ClientMessage maps an operation failure to the text shown to the client.
// Internal details never leave the process.
func ClientMessage(op Op, err error) string {
	switch op {
	case OpJoin:
		switch {
		case errors.Is(err, ErrRoomNotFound):
			return "Room not found"
		case errors.Is(err, ErrNotAMember):
			return "You are not a member of this private room"
		case errors.Is(err, ErrInvalidInput):
			return "roomId required"
		default:
			return "Failed to join room"
		}
	case OpSend:
		switch {
		case errors.Is(err, ErrMessageTooLong):
			return "message too long"
		case errors.Is(err, ErrInvalidInput):
			return "roomId and message required"
		case errors.Is(err, ErrNotAMember):
			return "You are not a member of this room"
		default:
			return "Failed to send message"
		}
	default:
		switch {
		case errors.Is(err, ErrUnknownOp):
			return "unknown event"
		case errors.Is(err, ErrInvalidInput):
			return "invalid payload"
		default:
			return "request failed"
		}
	}
}

// Expected reports whether err is a policy or input rejection rather than
// an internal failure that deserves an error log.
func Expected(err error) bool {
	return errors.Is(err, ErrRoomNotFound) ||
		errors.Is(err, ErrNotAMember) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrUnknownOp) ||
		errors.Is(err, ErrSessionClosed)
}
