package ws

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/cwrk-planet/chat-service/internal/chat"
	"github.com/cwrk-planet/chat-service/internal/domain"

	"github.com/go-playground/validator/v10"
)

// Message: конверт любого кадра в обе стороны.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// outbound пишется через WriteJSON, payload сериализуется как есть.
type outbound struct {
	Type    chat.EventType `json:"type"`
	Payload chat.Event     `json:"payload"`
}

func encode(ev chat.Event) outbound {
	return outbound{Type: ev.Type(), Payload: ev}
}

// RoomRef принимает roomId и числом, и строкой: клиенты шлют оба варианта.
type RoomRef int64

func (r *RoomRef) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*r = 0
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			*r = 0
			return nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("roomId: %w", err)
		}
		*r = RoomRef(n)
		return nil
	}
	var n int64
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("roomId: %w", err)
	}
	*r = RoomRef(n)
	return nil
}

func (r RoomRef) ID() domain.RoomID { return domain.RoomID(r) }

type JoinPayload struct {
	RoomID RoomRef `json:"roomId" validate:"gt=0"`
}

type SendPayload struct {
	RoomID  RoomRef `json:"roomId" validate:"gt=0"`
	Message string  `json:"message" validate:"required"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// decodePayload разбирает и валидирует payload; любая ошибка оборачивается в ErrInvalidInput.
func decodePayload(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: empty payload", chat.ErrInvalidInput)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %v", chat.ErrInvalidInput, err)
	}
	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %v", chat.ErrInvalidInput, err)
	}
	return nil
}
