package schema

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfiguration is matched by every *ConfigurationError
	ErrConfiguration = errors.New("configuration error")

	// ErrInvalidAttribute is matched by every *InvalidAttributeError
	ErrInvalidAttribute = errors.New("invalid attribute")
)

// ConfigurationError reports a model definition that cannot be set up
type ConfigurationError struct {
	Model     string
	Attribute string
	Message   string
}

// Error implements the error interface
func (e *ConfigurationError) Error() string {
	switch {
	case e.Model != "" && e.Attribute != "":
		return fmt.Sprintf("model %s: attribute %s: %s", e.Model, e.Attribute, e.Message)
	case e.Model != "":
		return fmt.Sprintf("model %s: %s", e.Model, e.Message)
	default:
		return e.Message
	}
}

// Unwrap exposes ErrConfiguration to errors.Is
func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// InvalidAttributeError reports attribute names that are not registered on a model
type InvalidAttributeError struct {
	Model      string
	Attributes []string
}

// Error implements the error interface
func (e *InvalidAttributeError) Error() string {
	return fmt.Sprintf("model %s has no attribute(s): %s", e.Model, strings.Join(e.Attributes, ", "))
}

// Unwrap exposes ErrInvalidAttribute to errors.Is
func (e *InvalidAttributeError) Unwrap() error { return ErrInvalidAttribute }

// IsConfigurationError returns true if err is a setup-time configuration failure
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

// IsInvalidAttribute returns true if err references an unregistered attribute
func IsInvalidAttribute(err error) bool {
	return errors.Is(err, ErrInvalidAttribute)
}
