package types

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Number holds numeric attributes as float64.
//
// Supported options: min, max (plus required, oneOf).
type Number struct{ Base }

// Modify coerces numeric kinds and numeric strings to float64.
func (Number) Modify(value any, _ Options) (any, error) {
	return parseNumber(value)
}

// Store emits the shortest decimal representation.
func (Number) Store(value any, _ Options) any {
	if value == nil {
		return nil
	}
	if f, ok := toFloat(value); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return fmt.Sprint(value)
}

// Retrieve parses the stored value into a float64.
func (Number) Retrieve(value any, _ Options) (any, error) {
	return parseNumber(value)
}

// Validate checks the min and max options.
func (Number) Validate(_ context.Context, value any, opts Options) error {
	if err := validateCommon(value, opts); err != nil || value == nil {
		return err
	}
	f, ok := toFloat(value)
	if !ok {
		return &ValidationError{Message: "must be a number"}
	}
	if min, ok := optFloat(opts, "min"); ok && f < min {
		return &ValidationError{Message: fmt.Sprintf("must be greater than or equal to %v", min)}
	}
	if max, ok := optFloat(opts, "max"); ok && f > max {
		return &ValidationError{Message: fmt.Sprintf("must be less than or equal to %v", max)}
	}
	return nil
}

func parseNumber(value any) (any, error) {
	if f, ok := toFloat(value); ok {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, NewTypeError("number", value, "not a finite number")
		}
		return f, nil
	}

	var s string
	switch v := value.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return nil, NewTypeError("number", value, "")
	}

	s = strings.TrimSpace(s)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, NewTypeError("number", value, "not a numeric string")
	}
	return f, nil
}

// toFloat converts Go numeric kinds. Strings are not handled here.
func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func optFloat(opts Options, key string) (float64, bool) {
	raw, ok := opts.Get(key)
	if !ok {
		return 0, false
	}
	if f, ok := toFloat(raw); ok {
		return f, true
	}
	if s, ok := raw.(string); ok {
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	}
	return 0, false
}
