package domain

import (
	"strconv"
	"time"
)

type RoomID int64

func (id RoomID) String() string { return strconv.FormatInt(int64(id), 10) }

// RoomKind decides the auto-join policy of a room and is fixed at creation.
type RoomKind string

const (
	RoomGroup   RoomKind = "group"   // anyone may join, membership is created on join
	RoomPrivate RoomKind = "private" // membership must already exist
)

// ParseRoomKind treats anything but "private" as a group room.
func ParseRoomKind(s string) RoomKind {
	if RoomKind(s) == RoomPrivate {
		return RoomPrivate
	}
	return RoomGroup
}

type Room struct {
	ID        RoomID    `db:"id"`
	Name      string    `db:"name"`
	Kind      RoomKind  `db:"type"`
	CreatedAt time.Time `db:"created_at"`
}

func (r *Room) AutoJoin() bool {
	return r.Kind == RoomGroup
}
