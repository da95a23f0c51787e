package types

import (
	"context"
	"fmt"
	"regexp"
	"unicode/utf8"
)

// String coerces every value to its string form.
//
// Supported options: minLength, maxLength, pattern (plus required, oneOf).
type String struct{ Base }

// Modify converts the value to a string. It never fails.
func (String) Modify(value any, _ Options) (any, error) {
	return toString(value), nil
}

// Store returns the string unchanged.
func (String) Store(value any, _ Options) any {
	if value == nil {
		return nil
	}
	return toString(value)
}

// Retrieve converts the stored value to a string.
func (String) Retrieve(value any, _ Options) (any, error) {
	return toString(value), nil
}

// Validate checks the length and pattern options.
func (String) Validate(_ context.Context, value any, opts Options) error {
	if err := validateCommon(value, opts); err != nil || value == nil {
		return err
	}
	s := toString(value)
	n := utf8.RuneCountInString(s)

	if min, ok := optFloat(opts, "minLength"); ok && float64(n) < min {
		return &ValidationError{Message: fmt.Sprintf("must be at least %v characters", min)}
	}
	if max, ok := optFloat(opts, "maxLength"); ok && float64(n) > max {
		return &ValidationError{Message: fmt.Sprintf("must be at most %v characters", max)}
	}
	if raw, ok := opts.Get("pattern"); ok {
		re, err := compilePattern(raw)
		if err != nil {
			return &ValidationError{Message: err.Error()}
		}
		if !re.MatchString(s) {
			return &ValidationError{Message: fmt.Sprintf("must match pattern %s", re.String())}
		}
	}
	return nil
}

func toString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func compilePattern(raw any) (*regexp.Regexp, error) {
	switch p := raw.(type) {
	case *regexp.Regexp:
		return p, nil
	case string:
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern option: %w", err)
		}
		return re, nil
	default:
		return nil, fmt.Errorf("invalid pattern option of type %T", raw)
	}
}
