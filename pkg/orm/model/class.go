// Package model binds definitions to type handlers, a storage adapter and
// serializers, and exposes the query and mutation surface of a model.
//
// A Class is declared from a schema.Definition and becomes usable once
// Setup has run:
//
//	cats := model.NewClass(catalog.Cat)
//	err := cats.Setup(types.Defaults(), map[string]adapter.Adapter{"default": memory.New()}, serializer.Defaults())
//	fluffy, err := cats.CreateOne(ctx, map[string]any{"name": "Fluffy"})
package model

import (
	"sync/atomic"

	"github.com/conduit-lang/datamap/pkg/orm/adapter"
	"github.com/conduit-lang/datamap/pkg/orm/schema"
	"github.com/conduit-lang/datamap/pkg/orm/serializer"
	"github.com/conduit-lang/datamap/pkg/orm/types"
)

// DefaultAdapter is the adapter key used by models without their own adapter
const DefaultAdapter = "default"

// binding is the result of one Setup call
type binding struct {
	meta        *schema.Model
	adapter     adapter.Adapter
	serializers map[string]serializer.Serializer
}

// Class is the model class: its definition plus the bindings resolved at setup
type Class struct {
	def     *schema.Definition
	binding atomic.Pointer[binding]
}

// NewClass declares a model class for def
func NewClass(def *schema.Definition) *Class {
	return &Class{def: def}
}

// Setup resolves every attribute's type handler, binds the adapter keyed by
// the model name (falling back to DefaultAdapter) and attaches the
// serializers. A later call replaces the earlier bindings; a failed call
// leaves them untouched.
func (c *Class) Setup(
	handlers map[string]types.Handler,
	adapters map[string]adapter.Adapter,
	serializers map[string]serializer.Serializer,
) error {
	meta, err := c.def.Resolve(handlers)
	if err != nil {
		return err
	}

	a, ok := adapters[c.def.Name()]
	if !ok || a == nil {
		a, ok = adapters[DefaultAdapter]
	}
	if !ok || a == nil {
		return &schema.ConfigurationError{
			Model:   c.def.Name(),
			Message: "no adapter registered as " + c.def.Name() + " or " + DefaultAdapter,
		}
	}

	bound := make(map[string]serializer.Serializer, len(serializers))
	for name, s := range serializers {
		bound[name] = s
	}

	c.binding.Store(&binding{meta: meta, adapter: a, serializers: bound})
	return nil
}

// Name returns the model name
func (c *Class) Name() string {
	return c.def.Name()
}

// Definition returns the model's declaration
func (c *Class) Definition() *schema.Definition {
	return c.def
}

// IsSetUp reports whether Setup has succeeded at least once
func (c *Class) IsSetUp() bool {
	return c.binding.Load() != nil
}

// Metadata returns the attribute registry, or nil before setup
func (c *Class) Metadata() *schema.Model {
	if b := c.binding.Load(); b != nil {
		return b.meta
	}
	return nil
}

// Adapter returns the bound adapter, or nil before setup
func (c *Class) Adapter() adapter.Adapter {
	if b := c.binding.Load(); b != nil {
		return b.adapter
	}
	return nil
}

func (c *Class) bound() (*binding, error) {
	b := c.binding.Load()
	if b == nil {
		return nil, &DomainStateError{Model: c.def.Name(), Operation: "bind", Err: ErrNotSetUp}
	}
	return b, nil
}

// Serialize passes a plain payload to the named serializer. An empty name
// selects the default serializer.
func (c *Class) Serialize(name string, payload any, opts serializer.Options) (any, error) {
	b, err := c.bound()
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = serializer.DefaultName
	}
	s, ok := b.serializers[name]
	if !ok || s == nil {
		return nil, &DomainStateError{Model: c.def.Name(), Operation: "serialize", Err: ErrUnknownSerializer}
	}
	return s.Serialize(b.meta, payload, opts)
}
