package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors for the domain layer. Services wrap these with %w and
// RespondError maps them back to status codes at the boundary.
var (
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("resource not found")
	ErrDuplicate    = errors.New("duplicate entry")
)

// RespondError maps domain errors to HTTP failure envelopes. Unknown errors
// become a 500 with a generic message; the underlying cause stays server-side.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrValidation):
		Fail(w, http.StatusBadRequest, messageOf(err, ErrValidation))
	case errors.Is(err, ErrUnauthorized):
		Fail(w, http.StatusUnauthorized, messageOf(err, ErrUnauthorized))
	case errors.Is(err, ErrForbidden):
		Fail(w, http.StatusForbidden, messageOf(err, ErrForbidden))
	case errors.Is(err, ErrNotFound):
		Fail(w, http.StatusNotFound, messageOf(err, ErrNotFound))
	case errors.Is(err, ErrDuplicate):
		Fail(w, http.StatusConflict, messageOf(err, ErrDuplicate))
	default:
		Fail(w, http.StatusInternalServerError, "Something went wrong")
	}
}

// messageOf strips the ": <sentinel>" suffix produced by fmt.Errorf wrapping,
// leaving the human-readable part of the error for the response body.
func messageOf(err, sentinel error) string {
	msg := err.Error()
	suffix := ": " + sentinel.Error()
	if len(msg) > len(suffix) && msg[len(msg)-len(suffix):] == suffix {
		return msg[:len(msg)-len(suffix)]
	}
	return msg
}
