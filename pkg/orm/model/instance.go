package model

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/conduit-lang/datamap/pkg/orm/adapter"
	"github.com/conduit-lang/datamap/pkg/orm/schema"
	"github.com/conduit-lang/datamap/pkg/orm/serializer"
	"github.com/conduit-lang/datamap/pkg/orm/types"
)

// Instance is one model object. Its state holds internal values keyed by
// attribute name; every read goes through the access hook and every write
// through the modify hook.
type Instance struct {
	class   *Class
	state   map[string]any
	cleared map[string]bool
	extras  map[string]any
}

// New constructs an instance from application values. Keys that are not
// registered attributes are ignored.
func (c *Class) New(props map[string]any) (*Instance, error) {
	b, err := c.bound()
	if err != nil {
		return nil, err
	}
	state, err := buildState(b.meta, props)
	if err != nil {
		return nil, err
	}
	return &Instance{class: c, state: state}, nil
}

// Hydrate constructs an instance from a raw storage row: each value goes
// through retrieve, then modify.
func (c *Class) Hydrate(row adapter.Record) (*Instance, error) {
	b, err := c.bound()
	if err != nil {
		return nil, err
	}
	return c.hydrate(b, row)
}

func (c *Class) hydrate(b *binding, row adapter.Record) (*Instance, error) {
	state, err := hydrateState(b.meta, row)
	if err != nil {
		return nil, err
	}
	return &Instance{class: c, state: state}, nil
}

// Class returns the instance's model class
func (i *Instance) Class() *Class {
	return i.class
}

func (i *Instance) meta() *schema.Model {
	return i.class.Metadata()
}

// Get returns the accessed value of an attribute, or nil when it is unset
// or not registered
func (i *Instance) Get(name string) any {
	v, ok := i.state[name]
	if !ok || v == nil {
		return nil
	}
	return access(i.meta(), name, v)
}

// Set assigns an attribute through its modify hook. A nil value clears the
// attribute. Unregistered names are rejected; use SetExtra for transient values.
func (i *Instance) Set(name string, value any) error {
	meta := i.meta()
	if err := meta.CheckKeys(name); err != nil {
		return err
	}

	internal, err := modify(meta, name, value)
	if err != nil {
		return err
	}

	if internal == nil {
		delete(i.state, name)
		if i.cleared == nil {
			i.cleared = make(map[string]bool)
		}
		i.cleared[name] = true
		return nil
	}

	i.state[name] = internal
	delete(i.cleared, name)
	return nil
}

// String returns an attribute as a string
func (i *Instance) String(name string) (string, bool) {
	s, ok := i.Get(name).(string)
	return s, ok
}

// Number returns an attribute as a float64
func (i *Instance) Number(name string) (float64, bool) {
	f, ok := i.Get(name).(float64)
	return f, ok
}

// Bool returns an attribute as a bool
func (i *Instance) Bool(name string) (bool, bool) {
	v, ok := i.Get(name).(bool)
	return v, ok
}

// Time returns an attribute as a time.Time
func (i *Instance) Time(name string) (time.Time, bool) {
	t, ok := i.Get(name).(time.Time)
	return t, ok
}

// ID returns the accessed identifier, or nil when it is unset
func (i *Instance) ID() any {
	return i.Get(i.meta().IDField())
}

// HasID reports whether the identifier is set
func (i *Instance) HasID() bool {
	return i.state[i.meta().IDField()] != nil
}

// SetExtra stores a transient value that is never persisted or serialized
func (i *Instance) SetExtra(name string, value any) {
	if i.extras == nil {
		i.extras = make(map[string]any)
	}
	i.extras[name] = value
}

// Extra returns a transient value
func (i *Instance) Extra(name string) (any, bool) {
	v, ok := i.extras[name]
	return v, ok
}

// Extras returns a copy of the transient values
func (i *Instance) Extras() map[string]any {
	out := make(map[string]any, len(i.extras))
	for k, v := range i.extras {
		out[k] = v
	}
	return out
}

// ToJSON returns the accessed value of every registered attribute whose
// internal value is set, including zero values such as false, 0 and "".
func (i *Instance) ToJSON() map[string]any {
	meta := i.meta()
	out := make(map[string]any, len(i.state))
	for _, name := range meta.Names() {
		if v, ok := i.state[name]; ok && v != nil {
			out[name] = access(meta, name, v)
		}
	}
	return out
}

// MarshalJSON implements json.Marshaler using ToJSON
func (i *Instance) MarshalJSON() ([]byte, error) {
	return json.Marshal(i.ToJSON())
}

// Serialize renders the instance with the named serializer. An empty name
// selects the default serializer.
func (i *Instance) Serialize(name string, opts serializer.Options) (any, error) {
	return i.class.Serialize(name, i.ToJSON(), opts)
}

// Dehydrate returns the storage representation of the instance: every set
// attribute through access, then store.
func (i *Instance) Dehydrate() adapter.Record {
	return dehydrate(i.meta(), i.state)
}

// Validate runs every attribute's validate hook against its internal value
// and collects the failures. It is never called implicitly.
func (i *Instance) Validate(ctx context.Context) error {
	meta := i.meta()
	errs := types.NewValidationErrors()
	for _, attr := range meta.Attributes() {
		h, _ := meta.Handler(attr.Name)
		if err := h.Validate(ctx, i.state[attr.Name], attr.Options); err != nil {
			errs.AddError(attr.Name, err)
		}
	}
	if errs.HasErrors() {
		return errs
	}
	return nil
}

// Save creates the record when the identifier is unset and updates it
// otherwise, then replaces the instance state with the stored row. On
// failure the state is left as it was.
func (i *Instance) Save(ctx context.Context) error {
	b, err := i.class.bound()
	if err != nil {
		return err
	}
	meta := b.meta

	var row adapter.Record
	if !i.HasID() {
		props := make(map[string]any, len(i.state))
		for k, v := range i.state {
			props[k] = v
		}
		state, err := buildState(meta, applyDefaults(meta, props))
		if err != nil {
			return err
		}
		row, err = b.adapter.CreateRecord(ctx, meta, dehydrate(meta, state))
		if err != nil {
			return err
		}
	} else {
		props := dehydrate(meta, i.state)
		for name := range i.cleared {
			props[name] = nil
		}
		id := props[meta.IDField()]
		delete(props, meta.IDField())

		row, err = b.adapter.UpdateRecord(ctx, meta, id, props)
		if err != nil {
			return err
		}
		if row == nil {
			return fmt.Errorf("%s.save %v: %w", meta.Name(), i.ID(), ErrRecordNotFound)
		}
	}

	return i.replace(meta, row)
}

func (i *Instance) replace(meta *schema.Model, row adapter.Record) error {
	state, err := hydrateState(meta, row)
	if err != nil {
		return err
	}
	i.state = state
	i.cleared = nil
	return nil
}

// Del deletes the instance's record and clears its identifier. The rest of
// the in-memory state is kept.
func (i *Instance) Del(ctx context.Context) error {
	b, err := i.class.bound()
	if err != nil {
		return err
	}
	if !i.HasID() {
		return &DomainStateError{Model: b.meta.Name(), Operation: "del", Err: ErrMissingIdentifier}
	}

	id := store(b.meta, b.meta.IDField(), i.Get(b.meta.IDField()))
	if err := b.adapter.DeleteRecord(ctx, b.meta, id); err != nil {
		return err
	}
	delete(i.state, b.meta.IDField())
	return nil
}

// Reload replaces the instance state with the stored record
func (i *Instance) Reload(ctx context.Context) error {
	b, err := i.class.bound()
	if err != nil {
		return err
	}
	if !i.HasID() {
		return &DomainStateError{Model: b.meta.Name(), Operation: "reload", Err: ErrMissingIdentifier}
	}

	id := store(b.meta, b.meta.IDField(), i.Get(b.meta.IDField()))
	row, err := b.adapter.OneByID(ctx, b.meta, id, nil)
	if err != nil {
		return err
	}
	if row == nil {
		return fmt.Errorf("%s.reload %v: %w", b.meta.Name(), i.ID(), ErrRecordNotFound)
	}
	return i.replace(b.meta, row)
}

// Attributes returns the names of the set attributes in registration order
func (i *Instance) Attributes() []string {
	var names []string
	for _, name := range i.meta().Names() {
		if i.state[name] != nil {
			names = append(names, name)
		}
	}
	return names
}

// ExtraNames returns the transient value names in sorted order
func (i *Instance) ExtraNames() []string {
	names := make([]string, 0, len(i.extras))
	for k := range i.extras {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
