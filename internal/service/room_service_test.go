package service

import (
	"context"
	"strings"
	"testing"

	"github.com/cwrk-planet/chat-service/internal/domain"

	"github.com/stretchr/testify/require"
)

func TestRoomService_CreateRoom(t *testing.T) {
	st := newMemRooms()
	svc := NewRoomService(st, st, st)
	ctx := context.Background()

	r, err := svc.CreateRoom(ctx, "general", "group", 1)
	require.NoError(t, err)
	require.Equal(t, domain.RoomGroup, r.Kind)

	p, err := svc.CreateRoom(ctx, "  ", "private", 1)
	require.NoError(t, err)
	require.Equal(t, "Room", p.Name)
	require.Equal(t, domain.RoomPrivate, p.Kind)

	odd, err := svc.CreateRoom(ctx, "x", "channel", 1)
	require.NoError(t, err)
	require.Equal(t, domain.RoomGroup, odd.Kind)

	_, err = svc.CreateRoom(ctx, strings.Repeat("я", 101), "group", 1)
	require.ErrorIs(t, err, ErrNameTooLong)

	mine, err := svc.MyRooms(ctx, 1)
	require.NoError(t, err)
	require.Len(t, mine, 3)

	ok, err := st.IsMember(ctx, r.ID, 1)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRoomService_JoinRoom(t *testing.T) {
	st := newMemRooms()
	svc := NewRoomService(st, st, st)
	ctx := context.Background()

	group, err := svc.CreateRoom(ctx, "general", "group", 1)
	require.NoError(t, err)
	private, err := svc.CreateRoom(ctx, "secret", "private", 1)
	require.NoError(t, err)

	already, err := svc.JoinRoom(ctx, group.ID, 2)
	require.NoError(t, err)
	require.False(t, already)

	already, err = svc.JoinRoom(ctx, group.ID, 2)
	require.NoError(t, err)
	require.True(t, already)

	_, err = svc.JoinRoom(ctx, private.ID, 2)
	require.ErrorIs(t, err, domain.ErrNotAMember)

	_, err = svc.JoinRoom(ctx, 404, 2)
	require.ErrorIs(t, err, domain.ErrRoomNotFound)

	members, err := svc.Members(ctx, group.ID, 2)
	require.NoError(t, err)
	require.Len(t, members, 2)

	_, err = svc.Members(ctx, private.ID, 2)
	require.ErrorIs(t, err, domain.ErrNotAMember)
}

func TestRoomService_ListAndHistory(t *testing.T) {
	st := newMemRooms()
	svc := NewRoomService(st, st, st)
	ctx := context.Background()

	for _, n := range []string{"a", "b", "c"} {
		_, err := svc.CreateRoom(ctx, n, "group", 1)
		require.NoError(t, err)
	}
	rooms, _, err := svc.ListRooms(ctx, 2, "")
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	require.Equal(t, "c", rooms[0].Name)

	st.messages[1] = []domain.Message{{ID: 1, RoomID: 1, Text: "hi"}, {ID: 2, RoomID: 1, Text: "there"}}
	msgs, _, err := svc.History(ctx, 1, "", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, "hi", msgs[0].Text)

	_, _, err = svc.History(ctx, 0, "", 0)
	require.ErrorIs(t, err, domain.ErrInvalidArg)
}
