// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors for the transport layer.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrConflict     = errors.New("conflict")
	ErrValidation   = errors.New("validation failed")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

// Classified is implemented by errors that already know how they should be
// reported to clients.
type Classified interface {
	error
	Status() int
	Title() string
	Detail() string
	Kind() string
	FieldErrors() map[string]string
}

// RespondError maps errors to RFC7807 responses.
func RespondError(w http.ResponseWriter, err error) {
	var classified Classified
	if errors.As(err, &classified) {
		WriteProblem(w, ProblemDetail{
			Title:  classified.Title(),
			Status: classified.Status(),
			Detail: classified.Detail(),
			Kind:   classified.Kind(),
			Fields: classified.FieldErrors(),
		})
		return
	}
	switch {
	case errors.Is(err, ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrConflict):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, ErrUnauthorized):
		Problem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
