package model

import (
	"encoding/json"

	"github.com/conduit-lang/datamap/pkg/orm/serializer"
)

// Collection is an ordered list of instances of one class
type Collection struct {
	class *Class
	Items []*Instance
}

// Class returns the collection's model class
func (c *Collection) Class() *Class {
	return c.class
}

// Len returns the number of instances
func (c *Collection) Len() int {
	return len(c.Items)
}

// ToJSON returns the plain representation of every instance
func (c *Collection) ToJSON() []map[string]any {
	out := make([]map[string]any, len(c.Items))
	for i, item := range c.Items {
		out[i] = item.ToJSON()
	}
	return out
}

// MarshalJSON implements json.Marshaler using ToJSON
func (c *Collection) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.ToJSON())
}

// Serialize renders the collection with the named serializer
func (c *Collection) Serialize(name string, opts serializer.Options) (any, error) {
	return c.class.Serialize(name, c.ToJSON(), opts)
}
