package server

import (
	"fmt"
	"io"
	"net/http"

	"github.com/felixge/httpsnoop"
	"github.com/pkg/errors"

	"blogapi/internal/apperr"
	"blogapi/internal/logging"
	"blogapi/internal/render"
)

// HandlerFunc is a route handler that reports failure by returning an error.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// ErrorResponder is the terminal stage for handler errors: it logs the error
// and sends the JSON error envelope.
type ErrorResponder struct {
	logs *logging.Service
}

// NewErrorResponder creates an ErrorResponder logging to logs.
func NewErrorResponder(logs *logging.Service) *ErrorResponder {
	return &ErrorResponder{logs: logs}
}

// Handle adapts h to http.Handler. Returned errors and panics both end in
// Respond; nothing runs after it.
func (er *ErrorResponder) Handle(h HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		committed := false
		ww := httpsnoop.Wrap(w, httpsnoop.Hooks{
			WriteHeader: func(next httpsnoop.WriteHeaderFunc) httpsnoop.WriteHeaderFunc {
				return func(code int) {
					if code >= 200 || code == http.StatusSwitchingProtocols {
						committed = true
					}
					next(code)
				}
			},
			Write: func(next httpsnoop.WriteFunc) httpsnoop.WriteFunc {
				return func(b []byte) (int, error) {
					committed = true
					return next(b)
				}
			},
			ReadFrom: func(next httpsnoop.ReadFromFunc) httpsnoop.ReadFromFunc {
				return func(src io.Reader) (int64, error) {
					committed = true
					return next(src)
				}
			},
			Flush: func(next httpsnoop.FlushFunc) httpsnoop.FlushFunc {
				return func() {
					committed = true
					next()
				}
			},
		})

		defer func() {
			v := recover()
			if v == nil {
				return
			}
			if v == http.ErrAbortHandler {
				panic(v)
			}
			er.respond(w, r, panicError(v), committed)
		}()

		if err := h(ww, r); err != nil {
			er.respond(w, r, err, committed)
		}
	})
}

// Respond logs err and writes the error envelope to a response that has not
// been started yet.
func (er *ErrorResponder) Respond(w http.ResponseWriter, r *http.Request, err error) {
	er.respond(w, r, err, false)
}

func (er *ErrorResponder) respond(w http.ResponseWriter, r *http.Request, err error, committed bool) {
	status := apperr.StatusOf(err)

	er.logs.Error().
		Stack().
		Err(err).
		Str("method", r.Method).
		Str("url", r.URL.RequestURI()).
		Int("status_code", status).
		Str("request_id", RequestIDFromContext(r.Context())).
		Msg("Error occurred")

	if committed {
		// Too late for an envelope; the client already has a status line.
		return
	}

	// The status is already committed if this fails, so there is nothing
	// left to report to the client.
	_ = render.Error(w, status, apperr.MessageOf(err))
}

func panicError(v any) error {
	if err, ok := v.(error); ok {
		return errors.WithStack(err)
	}
	return errors.New(fmt.Sprint(v))
}

func notFound(w http.ResponseWriter, r *http.Request) error {
	return apperr.New(http.StatusNotFound, "Not Found - "+r.URL.RequestURI())
}
