package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Error is a classified API failure carrying the HTTP status and the raw error
// payload. Transport failures (no HTTP response at all) are plain wrapped
// errors, not *Error.
type Error struct {
	Status  int
	Message string
	Data    json.RawMessage
}

func (e *Error) Error() string { return e.Message }

// newError builds an *Error from a non-2xx response. The payload's "error"
// field is preferred as the message; an unparseable body is kept verbatim in
// Data rather than raised as a parse failure.
func newError(status int, body []byte) *Error {
	e := &Error{
		Status:  status,
		Message: fmt.Sprintf("request failed (%d)", status),
		Data:    append(json.RawMessage(nil), body...),
	}
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
		e.Message = payload.Error
	}
	return e
}

// StatusOf returns the HTTP status carried by err, or 0 when err is not a
// classified API error.
func StatusOf(err error) int {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Status
	}
	return 0
}

// IsConflict reports whether err is a 409 response (e.g. a duplicate report).
func IsConflict(err error) bool { return StatusOf(err) == http.StatusConflict }

// IsNotFound reports whether err is a 404 response.
func IsNotFound(err error) bool { return StatusOf(err) == http.StatusNotFound }
