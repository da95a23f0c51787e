package types

import (
	"strings"
	"time"
)

// ISOLayout is the layout Date emits when storing: UTC with millisecond
// precision, e.g. 2017-08-28T20:17:25.601Z.
const ISOLayout = "2006-01-02T15:04:05.000Z07:00"

// accepted ISO-8601 extended layouts, tried in order
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// Date holds time values in UTC with millisecond precision, so a stored
// value reads back equal to the one that was set.
type Date struct{ Base }

// Modify accepts time values and ISO-8601 strings.
func (Date) Modify(value any, _ Options) (any, error) {
	return parseDate(value)
}

// Store emits an ISO-8601 string in ISOLayout.
func (Date) Store(value any, _ Options) any {
	if value == nil {
		return nil
	}
	t, err := parseDate(value)
	if err != nil {
		return toString(value)
	}
	return t.(time.Time).UTC().Format(ISOLayout)
}

// Retrieve parses stored ISO-8601 strings and driver time values.
func (Date) Retrieve(value any, _ Options) (any, error) {
	return parseDate(value)
}

func parseDate(value any) (any, error) {
	switch v := value.(type) {
	case time.Time:
		return normalizeTime(v), nil
	case *time.Time:
		if v == nil {
			return nil, NewTypeError("date", value, "nil time")
		}
		return normalizeTime(*v), nil
	case string:
		return parseDateString(value, v)
	case []byte:
		return parseDateString(value, string(v))
	default:
		return nil, NewTypeError("date", value, "")
	}
}

func parseDateString(orig any, s string) (any, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return normalizeTime(t), nil
		}
	}
	return nil, NewTypeError("date", orig, "not an ISO-8601 date")
}

func normalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}
