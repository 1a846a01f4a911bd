// Package httputil centralizes JSON encoding and error rendering so every
// handler agrees on the wire shape of failures.
package httputil

import (
	"encoding/json"
	"log/slog"
	"net/http"

	dErrors "presente/pkg/domain-errors"
)

const maxBodyBytes = 1 << 20

// Preparer lets request types normalize and validate themselves right after
// decoding. Decode calls it when the type implements it.
type Preparer interface {
	Prepare() error
}

// ErrorBody is the wire shape of every failure.
type ErrorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteJSON encodes v with the proper content type. Encoding failures are
// unrecoverable mid-stream, so they are swallowed.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError renders a coded error. Internal errors omit the description so
// infrastructure details never leak to API consumers.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	body := ErrorBody{Error: string(code)}
	if code != dErrors.CodeInternal {
		body.ErrorDescription = dErrors.MessageOf(err)
	}
	WriteJSON(w, dErrors.HTTPStatus(code), body)
}

// Decode parses the JSON request body into T and runs Prepare when T
// implements Preparer. On failure it writes the error response and returns
// false; the handler just returns.
func Decode[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger) (T, bool) {
	var req T
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		if logger != nil {
			logger.WarnContext(r.Context(), "request decode failed", "error", err)
		}
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed request body"))
		return req, false
	}
	if preparer, ok := any(&req).(Preparer); ok {
		if err := preparer.Prepare(); err != nil {
			WriteError(w, err)
			return req, false
		}
	}
	return req, true
}
