// Package apperr defines errors that carry an HTTP status for the client.
package apperr

import (
	"net/http"

	"github.com/pkg/errors"
)

// DefaultMessage is sent when an error has no message of its own.
const DefaultMessage = "Internal Server Error"

// Error is a client-facing failure. Message is what the client sees; the
// wrapped cause only goes to the logs.
type Error struct {
	Status  int
	Message string
	cause   error
}

// New returns an error with a declared status and a captured stack.
func New(status int, message string) *Error {
	return &Error{Status: status, Message: message, cause: errors.New(message)}
}

// Wrap attaches a status and public message to err.
func Wrap(err error, status int, message string) *Error {
	return &Error{Status: status, Message: message, cause: errors.WithStack(err)}
}

func (e *Error) Error() string {
	if e.cause == nil || e.cause.Error() == e.Message {
		return e.Message
	}
	return e.Message + ": " + e.cause.Error()
}

func (e *Error) Unwrap() error { return e.cause }

// HTTPStatus reports the declared status.
func (e *Error) HTTPStatus() int { return e.Status }

// StackTrace exposes the stack captured when the error was created.
func (e *Error) StackTrace() errors.StackTrace {
	if st, ok := e.cause.(interface{ StackTrace() errors.StackTrace }); ok {
		return st.StackTrace()
	}
	return nil
}

// StatusOf returns the status declared anywhere in err's chain, or 500 when
// none is declared or the declared one cannot be sent as a final status.
func StatusOf(err error) int {
	var s interface{ HTTPStatus() int }
	if errors.As(err, &s) {
		if code := s.HTTPStatus(); code >= 200 && code <= 999 {
			return code
		}
	}
	return http.StatusInternalServerError
}

// MessageOf returns the client-facing message for err.
func MessageOf(err error) string {
	var e *Error
	msg := ""
	if errors.As(err, &e) {
		msg = e.Message
	} else if err != nil {
		msg = err.Error()
	}
	if msg == "" {
		return DefaultMessage
	}
	return msg
}
