package chat

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClientMessage(t *testing.T) {
	internal := errors.New("pq: connection refused on 10.0.0.3")

	cases := []struct {
		name string
		op   Op
		err  error
		want string
	}{
		{"join room missing", OpJoin, ErrRoomNotFound, "Room not found"},
		{"join private", OpJoin, ErrNotAMember, "You are not a member of this private room"},
		{"join bad input", OpJoin, fmt.Errorf("%w: room id", ErrInvalidInput), "roomId required"},
		{"join internal", OpJoin, fmt.Errorf("%w: %w", ErrPersistence, internal), "Failed to join room"},
		{"send empty", OpSend, fmt.Errorf("%w: text", ErrInvalidInput), "roomId and message required"},
		{"send too long", OpSend, ErrMessageTooLong, "message too long"},
		{"send not member", OpSend, ErrNotAMember, "You are not a member of this room"},
		{"send internal", OpSend, internal, "Failed to send message"},
		{"unknown event", "", ErrUnknownOp, "unknown event"},
		{"bad payload", "", ErrInvalidInput, "invalid payload"},
		{"other", "", internal, "request failed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, ClientMessage(tc.op, tc.err))
			require.Equal(t, Failure{Message: tc.want}, NewFailure(tc.op, tc.err))
		})
	}
}

func TestExpected(t *testing.T) {
	require.True(t, Expected(ErrNotAMember))
	require.True(t, Expected(ErrMessageTooLong))
	require.False(t, Expected(fmt.Errorf("%w: boom", ErrPersistence)))
	require.False(t, Expected(ErrDelivery))
}
