package shared

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/shopdesk/backoffice/internal/platform/storage"
)

// Kind classifies why a call failed.
type Kind string

const (
	KindAuth       Kind = "auth"
	KindDB         Kind = "db"
	KindStorage    Kind = "storage"
	KindNetwork    Kind = "network"
	KindNotFound   Kind = "not_found"
	KindValidation Kind = "validation"
	KindUnknown    Kind = "unknown"
)

// Failure is the error half of Result. Message is safe to show to end users;
// Err keeps the underlying cause for logs.
type Failure struct {
	Cause   Kind
	Message string
	Fields  map[string]string
	Err     error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return f.Message
	}
	return f.Message + ": " + f.Err.Error()
}

func (f *Failure) Unwrap() error { return f.Err }

// Status maps the failure kind to an HTTP status code.
func (f *Failure) Status() int {
	switch f.Cause {
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindAuth:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindStorage:
		return http.StatusBadGateway
	case KindNetwork:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Title is the RFC7807 title for the failure.
func (f *Failure) Title() string {
	switch f.Cause {
	case KindValidation:
		return "Validation Failed"
	case KindAuth:
		return "Unauthorized"
	case KindNotFound:
		return "Not Found"
	case KindStorage:
		return "Storage Error"
	case KindNetwork:
		return "Service Unavailable"
	case KindDB:
		return "Database Error"
	default:
		return "Internal Error"
	}
}

func (f *Failure) Detail() string { return f.Message }

func (f *Failure) Kind() string { return string(f.Cause) }

func (f *Failure) FieldErrors() map[string]string { return f.Fields }

// Invalid builds a validation failure with per-field messages.
func Invalid(message string, fields map[string]string) *Failure {
	return &Failure{Cause: KindValidation, Message: message, Fields: fields}
}

// NewFailure classifies err, logs the detail and returns a failure that only
// exposes message to callers.
func NewFailure(ctx context.Context, logger *slog.Logger, err error, message string) *Failure {
	kind := Classify(err)
	if kind == KindNotFound {
		if message == "" {
			message = "resource not found"
		}
	}
	if logger != nil {
		attrs := []any{slog.String("cause", string(kind)), slog.Any("error", err)}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			attrs = append(attrs, slog.String("code", pgErr.Code))
		}
		if kind == KindNotFound {
			logger.WarnContext(ctx, message, attrs...)
		} else {
			logger.ErrorContext(ctx, message, attrs...)
		}
	}
	return &Failure{Cause: kind, Message: message, Err: err}
}

// Classify inspects err and reports which layer produced it.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var failure *Failure
	if errors.As(err, &failure) {
		return failure.Cause
	}
	if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, ErrNotFound) || errors.Is(err, storage.ErrNotFound) {
		return KindNotFound
	}
	if errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrInvalidCredentials) {
		return KindAuth
	}
	var storageErr *storage.Error
	if errors.As(err, &storageErr) {
		return KindStorage
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if strings.HasPrefix(pgErr.Code, "28") || pgErr.Code == "42501" {
			return KindAuth
		}
		return KindDB
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return KindNetwork
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF) {
		return KindNetwork
	}
	return KindUnknown
}

// Result is either a payload with a message or a Failure.
type Result[T any] struct {
	Data    T
	Message string
	Failure *Failure
}

// Ok wraps a successful payload.
func Ok[T any](data T, message string) Result[T] {
	if message == "" {
		message = "Success"
	}
	return Result[T]{Data: data, Message: message}
}

// Fail wraps a failure.
func Fail[T any](failure *Failure) Result[T] {
	return Result[T]{Failure: failure}
}

// OK reports whether the call succeeded.
func (r Result[T]) OK() bool { return r.Failure == nil }

// Get returns the payload and the failure as an error.
func (r Result[T]) Get() (T, error) {
	if r.Failure != nil {
		return r.Data, r.Failure
	}
	return r.Data, nil
}
