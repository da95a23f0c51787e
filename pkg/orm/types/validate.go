package types

import (
	"fmt"
	"reflect"
)

// validateCommon applies the rules every handler understands:
//
//	required: bool   value must be set
//	oneOf:    slice  value must equal one of the listed values
func validateCommon(value any, opts Options) error {
	if value == nil {
		if req, ok := opts.Get("required"); ok && req == true {
			return &ValidationError{Message: "is required"}
		}
		return nil
	}

	raw, ok := opts.Get("oneOf")
	if !ok {
		return nil
	}
	list := reflect.ValueOf(raw)
	if list.Kind() != reflect.Slice && list.Kind() != reflect.Array {
		return &ValidationError{Message: fmt.Sprintf("invalid oneOf option of type %T", raw)}
	}
	for i := 0; i < list.Len(); i++ {
		if looselyEqual(list.Index(i).Interface(), value) {
			return nil
		}
	}
	return &ValidationError{Message: fmt.Sprintf("must be one of %v", raw)}
}

// looselyEqual compares numerics by value so oneOf lists may be written with
// int literals against float64 attributes.
func looselyEqual(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
	}
	return reflect.DeepEqual(a, b)
}
