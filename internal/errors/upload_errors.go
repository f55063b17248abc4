package errors

import "errors"

var (
	// ErrUploadTransport wraps connection, I/O and timeout failures of an upload.
	ErrUploadTransport = errors.New("upload transport failure")
	// ErrDrainExhausted is returned when the shutdown drain gave up on the
	// remaining sessions.
	ErrDrainExhausted = errors.New("shutdown drain exhausted retry budget")
)
