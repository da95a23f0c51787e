package types

import (
	"github.com/google/uuid"
)

// UUID holds identifiers as uuid.UUID and stores them in canonical form.
type UUID struct{ Base }

// Modify parses strings, byte arrays and uuid.UUID values.
func (UUID) Modify(value any, _ Options) (any, error) {
	return parseUUID(value)
}

// Store emits the canonical hyphenated form.
func (UUID) Store(value any, _ Options) any {
	if value == nil {
		return nil
	}
	id, err := parseUUID(value)
	if err != nil {
		return toString(value)
	}
	return id.(uuid.UUID).String()
}

// Retrieve parses the stored identifier.
func (UUID) Retrieve(value any, _ Options) (any, error) {
	return parseUUID(value)
}

func parseUUID(value any) (any, error) {
	switch v := value.(type) {
	case uuid.UUID:
		return v, nil
	case [16]byte:
		return uuid.UUID(v), nil
	case string:
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, NewTypeError("uuid", value, err.Error())
		}
		return id, nil
	case []byte:
		if len(v) == 16 {
			id, err := uuid.FromBytes(v)
			if err == nil {
				return id, nil
			}
		}
		id, err := uuid.ParseBytes(v)
		if err != nil {
			return nil, NewTypeError("uuid", value, err.Error())
		}
		return id, nil
	default:
		return nil, NewTypeError("uuid", value, "")
	}
}
