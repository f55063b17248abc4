package errors

import (
	"fmt"
	"net/http"
)

// StatusError reports a non-success response from a remote HTTP API.
// Header and Body are kept for diagnosis only.
type StatusError struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       []byte
}

func NewStatusError(resp *http.Response, body []byte) *StatusError {
	return &StatusError{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header.Clone(),
		Body:       body,
	}
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected response status: %s", e.Status)
}
