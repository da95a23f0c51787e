// Package schema holds model definitions and the per-model attribute
// registries built from them at setup time.
//
// A model is declared once with the Builder:
//
//	var Cat = schema.Define("cat").
//		Attr("name", "string").
//		Attr("age", "number", schema.Default(1)).
//		Attr("color", "color", schema.With(types.Options{"oneOf": []string{"grey", "brown"}})).
//		MustBuild()
//
// and resolved against a set of type handlers with Definition.Resolve.
package schema

import (
	"fmt"

	"github.com/conduit-lang/datamap/pkg/orm/types"
)

// DefaultIDField is the identifier attribute used when a model does not name one
const DefaultIDField = "id"

// DefaultIDType is the type the identifier is declared with when it is not declared explicitly
const DefaultIDType = "number"

// reservedOptionKey may not appear in an attribute's options bag
const reservedOptionKey = "type"

// Attribute is a declared attribute: its name, type token, default and options
type Attribute struct {
	Name       string
	TypeName   string
	Default    any
	HasDefault bool
	Options    types.Options
}

// AttrOption configures an Attribute while it is declared
type AttrOption func(*Attribute)

// Default sets the value applied when a record is created without this attribute
func Default(value any) AttrOption {
	return func(a *Attribute) {
		a.Default = value
		a.HasDefault = true
	}
}

// With sets the options bag forwarded to every hook of the attribute's handler
func With(opts types.Options) AttrOption {
	return func(a *Attribute) {
		if a.Options == nil {
			a.Options = make(types.Options, len(opts))
		}
		for k, v := range opts {
			a.Options[k] = v
		}
	}
}

// Definition is the immutable declaration of a model
type Definition struct {
	name       string
	table      string
	idField    string
	attributes []Attribute
}

// Name returns the model name used for scoped type and adapter lookups
func (d *Definition) Name() string { return d.name }

// Table returns the storage table name
func (d *Definition) Table() string { return d.table }

// IDField returns the identifier attribute name
func (d *Definition) IDField() string { return d.idField }

// Attributes returns a copy of the declared attributes in declaration order
func (d *Definition) Attributes() []Attribute {
	out := make([]Attribute, len(d.attributes))
	copy(out, d.attributes)
	return out
}

// Builder collects attribute declarations for a model
type Builder struct {
	def  Definition
	seen map[string]bool
	errs []error
}

// Define starts the declaration of a model
func Define(name string) *Builder {
	return &Builder{
		def: Definition{
			name:    name,
			table:   ToSnakeCase(name),
			idField: DefaultIDField,
		},
		seen: make(map[string]bool),
	}
}

// Table overrides the storage table name
func (b *Builder) Table(table string) *Builder {
	b.def.table = table
	return b
}

// IDField overrides the identifier attribute name
func (b *Builder) IDField(field string) *Builder {
	b.def.idField = field
	return b
}

// Attr declares an attribute of the given type name
func (b *Builder) Attr(name, typeName string, opts ...AttrOption) *Builder {
	attr := Attribute{Name: name, TypeName: typeName}
	for _, opt := range opts {
		opt(&attr)
	}

	switch {
	case name == "":
		b.fail("", "attribute name must not be empty")
	case b.seen[name]:
		b.fail(name, "declared more than once")
	case typeName == "":
		b.fail(name, "type name must not be empty")
	}
	if _, ok := attr.Options.Get(reservedOptionKey); ok {
		b.fail(name, fmt.Sprintf("option key %q is reserved", reservedOptionKey))
	}

	b.seen[name] = true
	b.def.attributes = append(b.def.attributes, attr)
	return b
}

// Build finalizes the definition
func (b *Builder) Build() (*Definition, error) {
	if b.def.name == "" {
		b.fail("", "model name must not be empty")
	}
	if b.def.idField == "" {
		b.fail("", "identifier field must not be empty")
	}
	if len(b.errs) > 0 {
		return nil, b.errs[0]
	}

	def := b.def
	def.attributes = make([]Attribute, len(b.def.attributes))
	copy(def.attributes, b.def.attributes)
	return &def, nil
}

// MustBuild is like Build but panics on error. Intended for package-level model declarations.
func (b *Builder) MustBuild() *Definition {
	def, err := b.Build()
	if err != nil {
		panic(err)
	}
	return def
}

func (b *Builder) fail(attr, msg string) {
	b.errs = append(b.errs, &ConfigurationError{Model: b.def.name, Attribute: attr, Message: msg})
}
