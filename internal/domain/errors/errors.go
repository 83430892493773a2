package errors

import "errors"

var (
	ErrAlreadyExists      = errors.New("already exists")
	ErrNotFound           = errors.New("not found")
	ErrStaleState         = errors.New("stale state")
	ErrStaleSession       = errors.New("stale session")
	ErrInvalidUser        = errors.New("invalid user record")
	ErrInvalidCursor      = errors.New("invalid cursor")
	ErrInvalidCredentials = errors.New("invalid credentials")
)
