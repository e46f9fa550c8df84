package security

import "errors"

var (
	ErrPasswordTooShort   = errors.New("password too short")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmptySecret        = errors.New("empty jwt secret")
)
