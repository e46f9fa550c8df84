package domain

import "time"

type MessageID int64

// Message is an append-only chat record. ID and CreatedAt are assigned by
// the store at persistence time.
type Message struct {
	ID        MessageID `db:"id"`
	RoomID    RoomID    `db:"room_id"`
	Author    Identity  `db:"-"`
	Text      string    `db:"message"`
	CreatedAt time.Time `db:"created_at"`
}
