package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrInvalidType is matched by every *TypeError
	ErrInvalidType = errors.New("invalid value for type")

	// ErrValidationFailed is matched by *ValidationError and *ValidationErrors
	ErrValidationFailed = errors.New("validation failed")
)

// TypeError is returned by Modify and Retrieve when a value cannot be coerced
// to the handler's type.
type TypeError struct {
	Type   string
	Value  any
	Reason string
}

// NewTypeError creates a TypeError for the given type name and value
func NewTypeError(typeName string, value any, reason string) *TypeError {
	return &TypeError{Type: typeName, Value: value, Reason: reason}
}

// Error implements the error interface
func (e *TypeError) Error() string {
	msg := fmt.Sprintf("cannot use %#v (%T) as %s", e.Value, e.Value, e.Type)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// Unwrap exposes ErrInvalidType to errors.Is
func (e *TypeError) Unwrap() error { return ErrInvalidType }

// IsTypeError returns true if err is or wraps a *TypeError
func IsTypeError(err error) bool {
	return errors.Is(err, ErrInvalidType)
}

// ValidationError is a single failed validation rule on an attribute
type ValidationError struct {
	Attribute string
	Message   string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Attribute == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Attribute, e.Message)
}

// Unwrap exposes ErrValidationFailed to errors.Is
func (e *ValidationError) Unwrap() error { return ErrValidationFailed }

// ValidationErrors collects validation failures for a whole model instance
type ValidationErrors struct {
	Fields map[string][]string `json:"fields"`
}

// NewValidationErrors creates an empty ValidationErrors
func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{Fields: make(map[string][]string)}
}

// Add records a message against an attribute
func (ve *ValidationErrors) Add(attribute, message string) {
	if ve.Fields == nil {
		ve.Fields = make(map[string][]string)
	}
	ve.Fields[attribute] = append(ve.Fields[attribute], message)
}

// AddError records err against attribute. A *ValidationError keeps its own
// message; any other error is recorded by its text.
func (ve *ValidationErrors) AddError(attribute string, err error) {
	var single *ValidationError
	if errors.As(err, &single) {
		ve.Add(attribute, single.Message)
		return
	}
	ve.Add(attribute, err.Error())
}

// HasErrors returns true if any attribute failed validation
func (ve *ValidationErrors) HasErrors() bool {
	return len(ve.Fields) > 0
}

// Count returns the total number of messages across all attributes
func (ve *ValidationErrors) Count() int {
	count := 0
	for _, messages := range ve.Fields {
		count += len(messages)
	}
	return count
}

// Error implements the error interface
func (ve *ValidationErrors) Error() string {
	if !ve.HasErrors() {
		return "validation failed"
	}

	attrs := make([]string, 0, len(ve.Fields))
	for attr := range ve.Fields {
		attrs = append(attrs, attr)
	}
	sort.Strings(attrs)

	var messages []string
	for _, attr := range attrs {
		for _, msg := range ve.Fields[attr] {
			messages = append(messages, fmt.Sprintf("  - %s: %s", attr, msg))
		}
	}

	if len(messages) == 1 {
		return fmt.Sprintf("validation failed: %s", strings.TrimPrefix(messages[0], "  - "))
	}
	return fmt.Sprintf("validation failed:\n%s", strings.Join(messages, "\n"))
}

// Unwrap exposes ErrValidationFailed to errors.Is
func (ve *ValidationErrors) Unwrap() error { return ErrValidationFailed }

// MarshalJSON implements json.Marshaler
func (ve *ValidationErrors) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Error  string              `json:"error"`
		Fields map[string][]string `json:"fields"`
	}{
		Error:  "validation_failed",
		Fields: ve.Fields,
	})
}

// IsValidationFailed returns true if err is a validation failure
func IsValidationFailed(err error) bool {
	return errors.Is(err, ErrValidationFailed)
}
