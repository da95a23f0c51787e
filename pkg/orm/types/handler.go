// Package types provides the attribute type handlers used by the ORM to move
// values between their external, internal and stored representations.
//
// Every handler implements four transformation hooks plus an optional
// validation hook:
//
//   - Access:   internal value -> value exposed to application code
//   - Modify:   incoming value (assignment, construction) -> internal value
//   - Store:    internal value -> value written by a storage adapter
//   - Retrieve: raw value read by a storage adapter -> internal value
//   - Validate: checks an internal value; never invoked implicitly
//
// Only Modify and Retrieve may fail, and only with a *TypeError.
package types

import (
	"context"
	"fmt"
)

// Options is the free-form options bag declared with an attribute and
// forwarded to every hook of its handler.
type Options map[string]any

// Get returns the option stored under key, if any.
func (o Options) Get(key string) (any, bool) {
	if o == nil {
		return nil, false
	}
	v, ok := o[key]
	return v, ok
}

// Handler transforms the values of a single attribute.
type Handler interface {
	Access(value any, opts Options) any
	Modify(value any, opts Options) (any, error)
	Store(value any, opts Options) any
	Retrieve(value any, opts Options) (any, error)
	Validate(ctx context.Context, value any, opts Options) error
}

// Base is the identity handler. It is embeddable so custom handlers only
// override the hooks they care about.
type Base struct{}

// Access returns the value unchanged.
func (Base) Access(value any, _ Options) any { return value }

// Modify returns the value unchanged.
func (Base) Modify(value any, _ Options) (any, error) { return value, nil }

// Store stringifies the value.
func (Base) Store(value any, _ Options) any {
	if value == nil {
		return nil
	}
	return fmt.Sprint(value)
}

// Retrieve returns the value unchanged.
func (Base) Retrieve(value any, _ Options) (any, error) { return value, nil }

// Validate applies the generic option-driven rules (required, oneOf).
func (Base) Validate(_ context.Context, value any, opts Options) error {
	return validateCommon(value, opts)
}

// Defaults returns fresh instances of the built-in handlers keyed by their
// type names.
func Defaults() map[string]Handler {
	return map[string]Handler{
		"string":  String{},
		"number":  Number{},
		"boolean": Boolean{},
		"date":    Date{},
		"uuid":    UUID{},
		"json":    JSON{},
	}
}
