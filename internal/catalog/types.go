package catalog

import (
	"context"
	"math"
	"strings"

	"github.com/conduit-lang/datamap/pkg/orm/types"
)

// Name is a string with surrounding whitespace removed
type Name struct{ types.String }

// Modify trims the value
func (n Name) Modify(value any, opts types.Options) (any, error) {
	s, err := n.String.Modify(value, opts)
	if err != nil {
		return nil, err
	}
	return strings.TrimSpace(s.(string)), nil
}

// Color is a lower-case string
type Color struct{ types.String }

// Modify lower-cases the value
func (c Color) Modify(value any, opts types.Options) (any, error) {
	s, err := c.String.Modify(value, opts)
	if err != nil {
		return nil, err
	}
	return strings.ToLower(strings.TrimSpace(s.(string))), nil
}

// Age is a whole number of years
type Age struct{ types.Number }

// Validate applies the number rules and rejects fractions
func (a Age) Validate(ctx context.Context, value any, opts types.Options) error {
	if err := a.Number.Validate(ctx, value, opts); err != nil || value == nil {
		return err
	}
	if f, ok := value.(float64); ok && f != math.Trunc(f) {
		return &types.ValidationError{Message: "must be a whole number of years"}
	}
	return nil
}
