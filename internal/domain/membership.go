package domain

import "time"

type Membership struct {
	RoomID   RoomID    `db:"room_id"`
	UserID   UserID    `db:"user_id"`
	JoinedAt time.Time `db:"joined_at"`
}
