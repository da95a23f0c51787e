package types

import (
	"encoding/json"
)

// JSON holds structured values and stores them as compact JSON text.
type JSON struct{ Base }

// Modify accepts structured values as-is and decodes JSON text.
func (JSON) Modify(value any, _ Options) (any, error) {
	switch v := value.(type) {
	case string:
		return decodeJSON(value, []byte(v))
	case []byte:
		return decodeJSON(value, v)
	case json.RawMessage:
		return decodeJSON(value, v)
	}
	if _, err := json.Marshal(value); err != nil {
		return nil, NewTypeError("json", value, err.Error())
	}
	return value, nil
}

// Store encodes the value as JSON text.
func (JSON) Store(value any, _ Options) any {
	if value == nil {
		return nil
	}
	b, err := json.Marshal(value)
	if err != nil {
		return toString(value)
	}
	return string(b)
}

// Retrieve decodes stored JSON text. Values a driver already decoded pass through.
func (JSON) Retrieve(value any, _ Options) (any, error) {
	switch v := value.(type) {
	case string:
		return decodeJSON(value, []byte(v))
	case []byte:
		return decodeJSON(value, v)
	default:
		return value, nil
	}
}

func decodeJSON(orig any, b []byte) (any, error) {
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, NewTypeError("json", orig, err.Error())
	}
	return out, nil
}
