package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNotSetUp is returned by operations on a class that was never set up
	ErrNotSetUp = errors.New("model is not set up")

	// ErrUnknownSerializer is returned when serializing with a name that is not bound
	ErrUnknownSerializer = errors.New("unknown serializer")

	// ErrMissingIdentifier is returned by instance operations that need an identifier
	ErrMissingIdentifier = errors.New("instance has no identifier")

	// ErrRecordNotFound is returned when an instance's record no longer exists
	ErrRecordNotFound = errors.New("record not found")
)

// DomainStateError reports an operation invoked on an instance whose state
// does not allow it
type DomainStateError struct {
	Model     string
	Operation string
	Err       error
}

func (e *DomainStateError) Error() string {
	return fmt.Sprintf("%s.%s: %v", e.Model, e.Operation, e.Err)
}

func (e *DomainStateError) Unwrap() error { return e.Err }

// IsDomainStateError returns true if the error is a *DomainStateError
func IsDomainStateError(err error) bool {
	var stateErr *DomainStateError
	return errors.As(err, &stateErr)
}

// IsNotFound returns true if the error is ErrRecordNotFound
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRecordNotFound)
}
