package model

import (
	"github.com/conduit-lang/datamap/pkg/orm/adapter"
	"github.com/conduit-lang/datamap/pkg/orm/schema"
)

// modify runs the modify hook of a registered attribute. Nil is unset and
// never reaches the hook.
func modify(meta *schema.Model, name string, value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	h, _ := meta.Handler(name)
	attr, _ := meta.Attribute(name)
	return h.Modify(value, attr.Options)
}

func retrieve(meta *schema.Model, name string, value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	h, _ := meta.Handler(name)
	attr, _ := meta.Attribute(name)
	return h.Retrieve(value, attr.Options)
}

func access(meta *schema.Model, name string, value any) any {
	if value == nil {
		return nil
	}
	h, _ := meta.Handler(name)
	attr, _ := meta.Attribute(name)
	return h.Access(value, attr.Options)
}

func store(meta *schema.Model, name string, value any) any {
	if value == nil {
		return nil
	}
	h, _ := meta.Handler(name)
	attr, _ := meta.Attribute(name)
	return h.Store(value, attr.Options)
}

// toWire converts an application value into the value a store writes and
// compares: modify, then access, then store
func toWire(meta *schema.Model, name string, value any) (any, error) {
	internal, err := modify(meta, name, value)
	if err != nil {
		return nil, err
	}
	return store(meta, name, access(meta, name, internal)), nil
}

// wireWhere converts every filter value. Keys must already be checked.
func wireWhere(meta *schema.Model, where map[string]any) (adapter.Where, error) {
	if where == nil {
		return nil, nil
	}
	out := make(adapter.Where, len(where))
	for k, v := range where {
		w, err := toWire(meta, k, v)
		if err != nil {
			return nil, err
		}
		out[k] = w
	}
	return out, nil
}

// wireProps converts every mutation value. Keys must already be checked.
func wireProps(meta *schema.Model, props map[string]any) (adapter.Record, error) {
	out := make(adapter.Record, len(props))
	for k, v := range props {
		w, err := toWire(meta, k, v)
		if err != nil {
			return nil, err
		}
		out[k] = w
	}
	return out, nil
}

// buildState runs the modify hook over the registered keys of props;
// unregistered keys are ignored
func buildState(meta *schema.Model, props map[string]any) (map[string]any, error) {
	state := make(map[string]any, len(props))
	for k, v := range props {
		if !meta.Has(k) {
			continue
		}
		internal, err := modify(meta, k, v)
		if err != nil {
			return nil, err
		}
		if internal != nil {
			state[k] = internal
		}
	}
	return state, nil
}

// hydrateState runs retrieve then modify over a raw storage row
func hydrateState(meta *schema.Model, row adapter.Record) (map[string]any, error) {
	retrieved := make(map[string]any, len(row))
	for k, v := range row {
		if !meta.Has(k) {
			continue
		}
		internal, err := retrieve(meta, k, v)
		if err != nil {
			return nil, err
		}
		retrieved[k] = internal
	}
	return buildState(meta, retrieved)
}

// applyDefaults fills declared defaults for attributes absent from props.
// Defaults pass through modify like any other input.
func applyDefaults(meta *schema.Model, props map[string]any) map[string]any {
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = v
	}
	for _, attr := range meta.Attributes() {
		if !attr.HasDefault {
			continue
		}
		if _, ok := out[attr.Name]; !ok {
			out[attr.Name] = attr.Default
		}
	}
	return out
}

// dehydrate runs access then store over an instance state
func dehydrate(meta *schema.Model, state map[string]any) adapter.Record {
	out := make(adapter.Record, len(state))
	for k, v := range state {
		if v == nil {
			continue
		}
		out[k] = store(meta, k, access(meta, k, v))
	}
	return out
}
