package core

import "github.com/pkg/errors"

var (
	// ErrNotFound is returned whenever a record or file does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when a session is not allowed to perform an operation.
	ErrForbidden = errors.New("permission denied")
)

// FieldError describes what is wrong with one input field, named after its JSON key.
type FieldError struct {
	Field string
	Error string
}

// ValidationError is returned by the write paths when the input is rejected.
// Fields is empty when the whole input is invalid rather than specific fields.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{Err: err, Fields: flds}
}

func (err ValidationError) Error() string {
	switch {
	case err.Err != nil:
		return err.Err.Error()
	case len(err.Fields) > 0:
		return err.Fields[0].Field + ": " + err.Fields[0].Error
	}
	return "validation failed"
}

func (err ValidationError) Unwrap() error { return err.Err }

// shutdown is an error the API cannot recover from; it stops the server gracefully.
type shutdown string

func NewShutdownError(msg string) error {
	return shutdown(msg)
}

func (s shutdown) Error() string { return string(s) }

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(shutdown)
	return ok
}

// IsNotFound reports whether the root cause of err is ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Cause(err) == ErrNotFound
}
