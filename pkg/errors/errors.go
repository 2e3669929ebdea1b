// Package errors defines the loader's error taxonomy. Every fatal condition
// unwraps to one of the sentinel kinds below so the command can report what
// failed before exiting.
package errors

import (
	"errors"
	"fmt"
)

var (
	ErrStartup      = errors.New("startup error")
	ErrSchemaGap    = errors.New("data line before any #Fields: header")
	ErrLookup       = errors.New("enrichment field lookup failed")
	ErrSubmission   = errors.New("bulk submission failed")
	ErrInvalidInput = errors.New("invalid input")
)

type AppError struct {
	Err     error
	Message string
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, message string) *AppError {
	return &AppError{
		Err:     sentinel,
		Message: message,
	}
}

func Newf(sentinel error, format string, args ...any) *AppError {
	return &AppError{
		Err:     sentinel,
		Message: fmt.Sprintf(format, args...),
	}
}

// Kind names the failure class of err for diagnostics.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrStartup), errors.Is(err, ErrInvalidInput):
		return "StartupError"
	case errors.Is(err, ErrSchemaGap):
		return "SchemaGapError"
	case errors.Is(err, ErrLookup):
		return "LookupError"
	case errors.Is(err, ErrSubmission):
		return "SubmissionError"
	default:
		return "InternalError"
	}
}
