package domain

import (
	"strconv"
	"time"
)

type UserID int64

func (id UserID) String() string { return strconv.FormatInt(int64(id), 10) }

// Identity is a verified (id, username) pair. It is produced only by the
// identity verifier and never changes for the lifetime of a connection.
type Identity struct {
	ID       UserID
	Username string
}

func (i Identity) Valid() bool {
	return i.ID > 0 && i.Username != ""
}

type User struct {
	ID           UserID    `db:"id"`
	Username     string    `db:"username"`
	PasswordHash string    `db:"password"`
	CreatedAt    time.Time `db:"created_at"`
}

func (u *User) Identity() Identity {
	return Identity{ID: u.ID, Username: u.Username}
}
