// Package serializer shapes the plain representation of model instances
// into output formats. Serializers only see the plain payload and the
// model's metadata, never instance state.
package serializer

import (
	"time"

	"github.com/conduit-lang/datamap/pkg/orm/schema"
)

// Options is the free-form options bag passed through to a serializer
type Options map[string]any

// Serializer reshapes a plain payload. payload is either a single object
// (map[string]any) or a list of them.
type Serializer interface {
	Serialize(m *schema.Model, payload any, opts Options) (any, error)
}

// Func adapts a function to the Serializer interface
type Func func(m *schema.Model, payload any, opts Options) (any, error)

// Serialize calls f
func (f Func) Serialize(m *schema.Model, payload any, opts Options) (any, error) {
	return f(m, payload, opts)
}

// Names of the built-in serializers
const (
	DefaultName = "default"
	JSONAPIName = "jsonapi"
)

// Defaults returns the built-in serializers keyed by name
func Defaults() map[string]Serializer {
	return map[string]Serializer{
		DefaultName: Default{},
		JSONAPIName: JSONAPI{},
	}
}

// Default returns a deep copy of the payload
type Default struct{}

// Serialize implements Serializer
func (Default) Serialize(_ *schema.Model, payload any, _ Options) (any, error) {
	return Clone(payload), nil
}

// Clone deep-copies maps, slices and byte buffers. Other values are
// returned as they are.
func Clone(v any) any {
	switch t := v.(type) {
	case map[string]any:
		if t == nil {
			return t
		}
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = Clone(val)
		}
		return out
	case []map[string]any:
		if t == nil {
			return t
		}
		out := make([]map[string]any, len(t))
		for i, val := range t {
			out[i], _ = Clone(val).(map[string]any)
		}
		return out
	case []any:
		if t == nil {
			return t
		}
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = Clone(val)
		}
		return out
	case []string:
		if t == nil {
			return t
		}
		return append([]string(nil), t...)
	case []byte:
		if t == nil {
			return t
		}
		return append([]byte(nil), t...)
	case *time.Time:
		if t == nil {
			return t
		}
		c := *t
		return &c
	}
	return v
}
