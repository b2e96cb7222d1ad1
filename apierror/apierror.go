// Package apierror classifies failed HTTP exchanges into exactly one of two
// kinds: the server rejected the request (APIError) or the server could not
// be reached (ConnectivityError). Callers branch on the kind, never on the
// status code.
package apierror

import (
	"errors"
	"fmt"

	wferrors "github.com/jrsteele09/go-workforce-client/internal/errors"
)

// Sentinel errors for use with errors.Is().
var (
	ErrAPI          = errors.New("api error")
	ErrConnectivity = errors.New("connectivity error")

	// ErrAuthExpired matches an APIError carrying CodeAuthExpired.
	ErrAuthExpired = wferrors.ErrSessionExpired
)

const (
	DefaultMessage      = "Request failed"
	ConnectivityMessage = "Service temporarily unavailable"
	CodeAuthExpired     = "AUTH_EXPIRED"
)

// APIError is returned when the server processed the request and rejected it.
type APIError struct {
	Status  int
	Message string
	Code    string
	Details any
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error %d [%s]: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// Is supports errors.Is(err, ErrAPI) and, for session expiry,
// errors.Is(err, ErrAuthExpired).
func (e *APIError) Is(target error) bool {
	if target == ErrAPI {
		return true
	}
	return target == ErrAuthExpired && e.Code == CodeAuthExpired
}

// ConnectivityError is returned when no usable reply came back: the request
// never reached a server, or something other than the application answered.
type ConnectivityError struct {
	Message string
	// Status is set when an intermediary answered with a non-conforming body.
	Status int
	Cause  error
}

func (e *ConnectivityError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = ConnectivityMessage
	}
	switch {
	case e.Cause != nil:
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	case e.Status != 0:
		return fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	return msg
}

func (e *ConnectivityError) Is(target error) bool {
	return target == ErrConnectivity
}

func (e *ConnectivityError) Unwrap() error {
	return e.Cause
}

// NewAuthExpired builds the error returned to callers whose request could not
// be recovered by a token refresh.
func NewAuthExpired(cause error) *APIError {
	e := &APIError{
		Status:  401,
		Message: "Session expired",
		Code:    CodeAuthExpired,
	}
	if cause != nil {
		e.Details = cause.Error()
	}
	return e
}
