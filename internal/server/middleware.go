// Package server provides HTTP server setup, routing, and middleware.
package server

import (
	"bufio"
	"context"
	"io"
	"net"
	"net/http"

	"github.com/felixge/httpsnoop"
	"github.com/google/uuid"

	"blogapi/internal/logging"
)

// RequestIDHeader carries the request identifier in both directions.
const RequestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// RequestID reuses the caller's X-Request-ID or generates one.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := r.Header.Get(RequestIDHeader)
		if rid == "" || len(rid) > 128 {
			rid = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, rid)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, rid)))
	})
}

// RequestIDFromContext returns the request identifier, if any.
func RequestIDFromContext(ctx context.Context) string {
	rid, _ := ctx.Value(requestIDKey{}).(string)
	return rid
}

// RequestLogger logs each request when it arrives ("API Call") and again when
// its status is committed ("API Response"). The response writer is wrapped
// with httpsnoop so the handler sees the same optional interfaces.
func RequestLogger(logs *logging.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rl := &responseLogger{
				logs:      logs,
				method:    r.Method,
				url:       r.URL.RequestURI(),
				requestID: RequestIDFromContext(r.Context()),
			}

			logs.Info().
				Str("method", rl.method).
				Str("url", rl.url).
				Str("ip", clientIP(r)).
				Str("request_id", rl.requestID).
				Msg("API Call")

			next.ServeHTTP(httpsnoop.Wrap(w, rl.hooks()), r)

			// net/http sends 200 for a handler that never wrote.
			rl.commit(http.StatusOK)
		})
	}
}

// responseLogger emits the post-response record once, at the first call that
// commits the status line. Handlers must not write concurrently, so no lock.
type responseLogger struct {
	logs      *logging.Service
	method    string
	url       string
	requestID string
	done      bool
}

func (rl *responseLogger) commit(code int) {
	if rl.done {
		return
	}
	rl.done = true
	rl.logs.Info().
		Str("method", rl.method).
		Str("url", rl.url).
		Int("status_code", code).
		Str("request_id", rl.requestID).
		Msg("API Response")
}

func (rl *responseLogger) hooks() httpsnoop.Hooks {
	return httpsnoop.Hooks{
		WriteHeader: func(next httpsnoop.WriteHeaderFunc) httpsnoop.WriteHeaderFunc {
			return func(code int) {
				// 1xx other than 101 is informational and does not commit.
				if code >= 200 && code <= 999 || code == http.StatusSwitchingProtocols {
					rl.commit(code)
				}
				next(code)
			}
		},
		Write: func(next httpsnoop.WriteFunc) httpsnoop.WriteFunc {
			return func(b []byte) (int, error) {
				rl.commit(http.StatusOK)
				return next(b)
			}
		},
		ReadFrom: func(next httpsnoop.ReadFromFunc) httpsnoop.ReadFromFunc {
			return func(src io.Reader) (int64, error) {
				rl.commit(http.StatusOK)
				return next(src)
			}
		},
		Flush: func(next httpsnoop.FlushFunc) httpsnoop.FlushFunc {
			return func() {
				rl.commit(http.StatusOK)
				next()
			}
		},
		Hijack: func(next httpsnoop.HijackFunc) httpsnoop.HijackFunc {
			return func() (net.Conn, *bufio.ReadWriter, error) {
				conn, rw, err := next()
				if err == nil && !rl.done {
					rl.done = true
					rl.logs.Info().
						Str("method", rl.method).
						Str("url", rl.url).
						Bool("hijacked", true).
						Str("request_id", rl.requestID).
						Msg("API Response")
				}
				return conn, rw, err
			}
		},
	}
}

// clientIP returns the remote address without its port.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
