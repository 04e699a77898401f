package store

import "fmt"

// Error is a persistence error the service layer translates into a domain error.
type Error struct {
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// WithMessage returns a new error with a custom message.
func (e *Error) WithMessage(msg string) *Error {
	return &Error{Message: msg, Err: e.Err}
}

// Sentinel errors. Compare with errors.Is; the store returns these values directly.
var (
	ErrNotFound = &Error{Message: "resource not found"}

	ErrAlreadyExists = &Error{Message: "resource already exists"}

	// ErrOpenSessionExists is returned when inserting a second open session
	// for a history that already has one.
	ErrOpenSessionExists = &Error{Message: "history already has an open session"}
)
