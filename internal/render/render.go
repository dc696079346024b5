// Package render writes JSON response bodies.
package render

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
)

// ErrorBody is the inner object of an error response.
type ErrorBody struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// ErrorEnvelope is the shape of every error response.
type ErrorEnvelope struct {
	Error ErrorBody `json:"error"`
}

// JSON encodes v and writes it with the given status. Nothing is written if
// encoding fails.
func JSON(w http.ResponseWriter, status int, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "encode response")
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, err = w.Write(body)
	return err
}

// Error writes the error envelope.
func Error(w http.ResponseWriter, status int, message string) error {
	return JSON(w, status, ErrorEnvelope{Error: ErrorBody{Message: message, Status: status}})
}
