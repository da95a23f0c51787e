package types

// Boolean accepts a fixed set of truthy and falsy tokens.
type Boolean struct{ Base }

var (
	trueTokens  = map[string]bool{"true": true, "TRUE": true, "T": true, "t": true, "1": true}
	falseTokens = map[string]bool{"false": true, "FALSE": true, "F": true, "f": true, "0": true}
)

// Modify converts a boolean token to bool.
func (Boolean) Modify(value any, _ Options) (any, error) {
	return parseBoolean(value)
}

// Store emits "TRUE" or "FALSE".
func (Boolean) Store(value any, _ Options) any {
	if value == nil {
		return nil
	}
	b, err := parseBoolean(value)
	if err != nil {
		return toString(value)
	}
	if b.(bool) {
		return "TRUE"
	}
	return "FALSE"
}

// Retrieve converts a stored token to bool.
func (Boolean) Retrieve(value any, _ Options) (any, error) {
	return parseBoolean(value)
}

func parseBoolean(value any) (any, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		return parseBooleanToken(value, v)
	case []byte:
		return parseBooleanToken(value, string(v))
	}

	if f, ok := toFloat(value); ok {
		switch f {
		case 1:
			return true, nil
		case 0:
			return false, nil
		}
	}
	return nil, NewTypeError("boolean", value, "")
}

func parseBooleanToken(orig any, s string) (any, error) {
	if trueTokens[s] {
		return true, nil
	}
	if falseTokens[s] {
		return false, nil
	}
	return nil, NewTypeError("boolean", orig, "not a boolean token")
}
