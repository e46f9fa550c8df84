package domain

import "errors"

var (
	ErrUnauthorized  = errors.New("unauthorized")
	ErrRoomNotFound  = errors.New("room not found")
	ErrNotAMember    = errors.New("not a member of the room")
	ErrAlreadyExists = errors.New("already exists")
	ErrNotFound      = errors.New("not found")
	ErrInvalidArg    = errors.New("invalid argument")
)
