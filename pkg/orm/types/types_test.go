package types

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseIsIdentity(t *testing.T) {
	var h Base
	v, err := h.Modify("x", nil)
	require.NoError(t, err)
	assert.Equal(t, "x", v)

	v, err = h.Retrieve(42, nil)
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	assert.Equal(t, "x", h.Access("x", nil))
	assert.Equal(t, "42", h.Store(42, nil))
	assert.Nil(t, h.Store(nil, nil))
	assert.NoError(t, h.Validate(context.Background(), 1, nil))
}

func TestString(t *testing.T) {
	h := String{}

	tests := []struct {
		name  string
		input any
		want  string
	}{
		{"string", "Fluffy", "Fluffy"},
		{"int", 13, "13"},
		{"float", 1.5, "1.5"},
		{"bytes", []byte("raw"), "raw"},
		{"stringer", uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8"), "6ba7b810-9dad-11d1-80b4-00c04fd430c8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := h.Modify(tt.input, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			got, err = h.Retrieve(tt.input, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Equal(t, "Fluffy", h.Store("Fluffy", nil))
}

func TestStringValidate(t *testing.T) {
	h := String{}
	ctx := context.Background()
	opts := Options{"minLength": 2, "maxLength": 5, "pattern": "^[a-z]+$"}

	assert.NoError(t, h.Validate(ctx, "cat", opts))
	assert.ErrorIs(t, h.Validate(ctx, "c", opts), ErrValidationFailed)
	assert.ErrorIs(t, h.Validate(ctx, "kittens", opts), ErrValidationFailed)
	assert.ErrorIs(t, h.Validate(ctx, "Cat", opts), ErrValidationFailed)
	assert.NoError(t, h.Validate(ctx, nil, opts))
	assert.ErrorIs(t, h.Validate(ctx, nil, Options{"required": true}), ErrValidationFailed)
	assert.NoError(t, h.Validate(ctx, "grey", Options{"oneOf": []string{"grey", "brown"}}))
	assert.Error(t, h.Validate(ctx, "pink", Options{"oneOf": []string{"grey", "brown"}}))
}

func TestNumber(t *testing.T) {
	h := Number{}

	tests := []struct {
		name  string
		input any
		want  float64
	}{
		{"float", 12.0, 12},
		{"int", 12, 12},
		{"int64", int64(7), 7},
		{"uint8", uint8(3), 3},
		{"numeric string", "21", 21},
		{"padded string", " 1.25 ", 1.25},
		{"bytes", []byte("10"), 10},
		{"json number", json.Number("4.5"), 4.5},
		{"negative", "-3", -3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := h.Modify(tt.input, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNumberRejectsNonNumeric(t *testing.T) {
	h := Number{}
	for _, input := range []any{"asdasd", "", true, struct{}{}, "NaN"} {
		_, err := h.Modify(input, nil)
		require.Error(t, err, "input %#v", input)
		assert.True(t, IsTypeError(err))

		_, err = h.Retrieve(input, nil)
		assert.ErrorIs(t, err, ErrInvalidType)
	}
}

func TestNumberStore(t *testing.T) {
	h := Number{}
	assert.Equal(t, "21", h.Store(21.0, nil))
	assert.Equal(t, "1.5", h.Store(1.5, nil))
	assert.Equal(t, "-0.25", h.Store(-0.25, nil))
}

func TestNumberValidate(t *testing.T) {
	h := Number{}
	ctx := context.Background()
	opts := Options{"min": 0, "max": 30}

	assert.NoError(t, h.Validate(ctx, 12.0, opts))
	assert.Error(t, h.Validate(ctx, -1.0, opts))
	assert.Error(t, h.Validate(ctx, 31.0, opts))
	assert.NoError(t, h.Validate(ctx, 2.0, Options{"oneOf": []int{1, 2, 3}}))
}

func TestBoolean(t *testing.T) {
	h := Boolean{}

	truthy := []any{true, "true", "TRUE", "T", "t", "1", 1, int64(1), 1.0, []byte("t")}
	falsy := []any{false, "false", "FALSE", "F", "f", "0", 0, int64(0), 0.0}

	for _, input := range truthy {
		got, err := h.Modify(input, nil)
		require.NoError(t, err, "input %#v", input)
		assert.Equal(t, true, got, "input %#v", input)
	}
	for _, input := range falsy {
		got, err := h.Retrieve(input, nil)
		require.NoError(t, err, "input %#v", input)
		assert.Equal(t, false, got, "input %#v", input)
	}
}

func TestBooleanRejectsUnknownTokens(t *testing.T) {
	h := Boolean{}
	for _, input := range []any{"asdasd", "yes", 2, "", 0.5} {
		_, err := h.Modify(input, nil)
		assert.True(t, IsTypeError(err), "input %#v", input)
		_, err = h.Retrieve(input, nil)
		assert.True(t, IsTypeError(err), "input %#v", input)
	}
}

func TestBooleanStore(t *testing.T) {
	h := Boolean{}
	assert.Equal(t, "TRUE", h.Store(true, nil))
	assert.Equal(t, "FALSE", h.Store(false, nil))
}

func TestDate(t *testing.T) {
	h := Date{}
	want := time.Date(2017, 8, 28, 20, 17, 25, 601000000, time.UTC)

	inputs := []any{
		"2017-08-28T20:17:25.601Z",
		"2017-08-28T22:17:25.601+02:00",
		"2017-08-28T20:17:25.601",
		want,
		&want,
		[]byte("2017-08-28T20:17:25.601Z"),
	}

	for _, input := range inputs {
		got, err := h.Modify(input, nil)
		require.NoError(t, err, "input %#v", input)
		assert.True(t, want.Equal(got.(time.Time)), "input %#v", input)
	}

	got, err := h.Modify("2017-08-28", nil)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2017, 8, 28, 0, 0, 0, 0, time.UTC), got)
}

func TestDateTruncatesToMilliseconds(t *testing.T) {
	h := Date{}
	want := time.Date(2017, 8, 28, 20, 17, 25, 601000000, time.UTC)

	fine := time.Date(2017, 8, 28, 22, 17, 25, 601123456, time.FixedZone("CEST", 2*60*60))
	for _, input := range []any{fine, &fine, "2017-08-28T20:17:25.601999Z"} {
		got, err := h.Modify(input, nil)
		require.NoError(t, err)
		assert.True(t, want.Equal(got.(time.Time)), "input %#v", input)
	}

	now, err := h.Modify(time.Now(), nil)
	require.NoError(t, err)
	back, err := h.Retrieve(h.Store(now, nil), nil)
	require.NoError(t, err)
	assert.Equal(t, now, back)
}

func TestDateRejectsUnparsable(t *testing.T) {
	h := Date{}
	for _, input := range []any{"not a date", "28/08/2017", 12, true} {
		_, err := h.Modify(input, nil)
		assert.True(t, IsTypeError(err), "input %#v", input)
		_, err = h.Retrieve(input, nil)
		assert.True(t, IsTypeError(err), "input %#v", input)
	}
}

func TestDateStore(t *testing.T) {
	h := Date{}
	d := time.Date(2017, 8, 28, 20, 17, 25, 601000000, time.UTC)
	assert.Equal(t, "2017-08-28T20:17:25.601Z", h.Store(d, nil))

	local := d.In(time.FixedZone("CEST", 2*60*60))
	assert.Equal(t, "2017-08-28T20:17:25.601Z", h.Store(local, nil))
}

func TestUUID(t *testing.T) {
	h := UUID{}
	id := uuid.New()

	got, err := h.Modify(id.String(), nil)
	require.NoError(t, err)
	assert.Equal(t, id, got)

	got, err = h.Retrieve(id[:], nil)
	require.NoError(t, err)
	assert.Equal(t, id, got)

	assert.Equal(t, id.String(), h.Store(id, nil))

	_, err = h.Modify("not-a-uuid", nil)
	assert.True(t, IsTypeError(err))
}

func TestJSON(t *testing.T) {
	h := JSON{}

	got, err := h.Modify(`{"toys":["mouse","ball"]}`, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"toys": []any{"mouse", "ball"}}, got)

	stored := h.Store(map[string]any{"a": 1}, nil)
	assert.Equal(t, `{"a":1}`, stored)

	back, err := h.Retrieve(stored, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1.0}, back)

	_, err = h.Retrieve("{broken", nil)
	assert.True(t, IsTypeError(err))

	_, err = h.Modify(make(chan int), nil)
	assert.True(t, IsTypeError(err))
}

// retrieve(store(modify(x))) must be observably equal to modify(x) under access.
func TestRoundTrip(t *testing.T) {
	d := time.Date(2017, 8, 28, 20, 17, 25, 601000000, time.UTC)

	tests := []struct {
		name    string
		handler Handler
		input   any
	}{
		{"string", String{}, "Fluffy"},
		{"number", Number{}, "21"},
		{"number float", Number{}, 12.75},
		{"boolean true", Boolean{}, "T"},
		{"boolean false", Boolean{}, "f"},
		{"date", Date{}, d},
		{"date string", Date{}, "2017-04-28T20:17:25.601Z"},
		{"date nanoseconds", Date{}, time.Date(2017, 8, 28, 20, 17, 25, 601123456, time.UTC)},
		{"date nanosecond string", Date{}, "2017-08-28T20:17:25.601123456Z"},
		{"uuid", UUID{}, "6ba7b810-9dad-11d1-80b4-00c04fd430c8"},
		{"json", JSON{}, `{"a":[1,2]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			internal, err := tt.handler.Modify(tt.input, nil)
			require.NoError(t, err)

			back, err := tt.handler.Retrieve(tt.handler.Store(internal, nil), nil)
			require.NoError(t, err)

			assert.Equal(t, tt.handler.Access(internal, nil), tt.handler.Access(back, nil))
		})
	}

	n, _ := Number{}.Modify("21", nil)
	back, _ := Number{}.Retrieve(Number{}.Store(n, nil), nil)
	assert.Equal(t, 21.0, back)

	b, _ := Boolean{}.Modify("T", nil)
	assert.Equal(t, true, Boolean{}.Access(b, nil))

	stored := Date{}.Store(d, nil)
	rd, _ := Date{}.Retrieve(stored, nil)
	assert.Equal(t, d.Format(ISOLayout), rd.(time.Time).Format(ISOLayout))
}

func TestCustomHandlerOverridesSingleHook(t *testing.T) {
	h := shoutingString{}

	v, err := h.Modify("tom", nil)
	require.NoError(t, err)
	assert.Equal(t, "tom", v)
	assert.Equal(t, "TOM!", h.Access(v, nil))
}

type shoutingString struct{ String }

func (shoutingString) Access(value any, _ Options) any {
	return toUpper(value.(string)) + "!"
}

func toUpper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - ('a' - 'A')
		}
	}
	return string(b)
}

func TestValidationErrors(t *testing.T) {
	ve := NewValidationErrors()
	assert.False(t, ve.HasErrors())
	assert.Equal(t, "validation failed", ve.Error())

	ve.AddError("age", &ValidationError{Message: "must be positive"})
	assert.Equal(t, "validation failed: age: must be positive", ve.Error())

	ve.AddError("name", errors.New("is required"))
	assert.Equal(t, 2, ve.Count())
	assert.Contains(t, ve.Error(), "  - name: is required")
	assert.True(t, IsValidationFailed(ve))

	data, err := json.Marshal(ve)
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":"validation_failed","fields":{"age":["must be positive"],"name":["is required"]}}`, string(data))
}

func TestDefaults(t *testing.T) {
	d := Defaults()
	for _, name := range []string{"string", "number", "boolean", "date", "uuid", "json"} {
		assert.Contains(t, d, name)
	}
}
