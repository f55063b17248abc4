package errors

import "errors"

var (
	ErrNoActiveSession = errors.New("no active session for player")
	ErrInvalidPlayer   = errors.New("player id is required")
	ErrUnknownEvent    = errors.New("unknown player event type")
)
