package schema

import (
	"fmt"
	"sort"

	"github.com/conduit-lang/datamap/pkg/orm/types"
)

// Model is the attribute registry of a set-up model: every declared
// attribute with its resolved type handler. It is read-only once built.
type Model struct {
	name       string
	table      string
	idField    string
	attributes []Attribute
	index      map[string]int
	handlers   map[string]types.Handler
}

// ScopedTypeName returns the model-scoped handler key for a type name
func ScopedTypeName(model, typeName string) string {
	return model + ":" + typeName
}

// Resolve binds a type handler to every attribute. The identifier attribute
// is declared as a number if the definition does not declare it. For each
// attribute "<model>:<type>" takes precedence over "<type>"; an attribute
// that resolves to neither is a *ConfigurationError.
func (d *Definition) Resolve(handlers map[string]types.Handler) (*Model, error) {
	attrs := d.Attributes()

	hasID := false
	for _, a := range attrs {
		if a.Name == d.idField {
			hasID = true
			break
		}
	}
	if !hasID {
		attrs = append([]Attribute{{Name: d.idField, TypeName: DefaultIDType}}, attrs...)
	}

	m := &Model{
		name:       d.name,
		table:      d.table,
		idField:    d.idField,
		attributes: attrs,
		index:      make(map[string]int, len(attrs)),
		handlers:   make(map[string]types.Handler, len(attrs)),
	}

	for i, a := range attrs {
		scoped := ScopedTypeName(d.name, a.TypeName)
		h, ok := handlers[scoped]
		if !ok || h == nil {
			h, ok = handlers[a.TypeName]
		}
		if !ok || h == nil {
			return nil, &ConfigurationError{
				Model:     d.name,
				Attribute: a.Name,
				Message:   fmt.Sprintf("no type handler registered as %q or %q", scoped, a.TypeName),
			}
		}
		m.index[a.Name] = i
		m.handlers[a.Name] = h
	}

	return m, nil
}

// Name returns the model name
func (m *Model) Name() string { return m.name }

// Table returns the storage table name
func (m *Model) Table() string { return m.table }

// IDField returns the identifier attribute name
func (m *Model) IDField() string { return m.idField }

// Attributes returns the registered attributes in registration order
func (m *Model) Attributes() []Attribute {
	out := make([]Attribute, len(m.attributes))
	copy(out, m.attributes)
	return out
}

// Attribute returns the declaration of a registered attribute
func (m *Model) Attribute(name string) (Attribute, bool) {
	i, ok := m.index[name]
	if !ok {
		return Attribute{}, false
	}
	return m.attributes[i], true
}

// Handler returns the resolved type handler of a registered attribute
func (m *Model) Handler(name string) (types.Handler, bool) {
	h, ok := m.handlers[name]
	return h, ok
}

// Has returns true if the attribute is registered
func (m *Model) Has(name string) bool {
	_, ok := m.index[name]
	return ok
}

// Names returns the registered attribute names in registration order
func (m *Model) Names() []string {
	names := make([]string, len(m.attributes))
	for i, a := range m.attributes {
		names[i] = a.Name
	}
	return names
}

// Column returns the storage column for an attribute
func (m *Model) Column(name string) string {
	return ToSnakeCase(name)
}

// CheckKeys returns an *InvalidAttributeError listing every key that is not
// a registered attribute, or nil.
func (m *Model) CheckKeys(keys ...string) error {
	var unknown []string
	for _, k := range keys {
		if !m.Has(k) {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return &InvalidAttributeError{Model: m.name, Attributes: unknown}
}
