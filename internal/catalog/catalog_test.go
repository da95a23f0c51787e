package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/datamap/pkg/orm/adapter"
	"github.com/conduit-lang/datamap/pkg/orm/adapter/instrumented"
	"github.com/conduit-lang/datamap/pkg/orm/adapter/sqlstore"
	"github.com/conduit-lang/datamap/pkg/orm/mapper"
	"github.com/conduit-lang/datamap/pkg/orm/model"
	"github.com/conduit-lang/datamap/pkg/orm/types"
)

func newMapper(t *testing.T, storage adapter.Config) *mapper.Mapper {
	t.Helper()
	ctx := context.Background()
	m, err := mapper.New(ctx, mapper.Config{
		Models:  Models(),
		Types:   Types(),
		Storage: map[string]adapter.Config{"default": storage},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Destroy(ctx) })
	return m
}

func cats(t *testing.T, m *mapper.Mapper) *model.Class {
	t.Helper()
	c, ok := m.Model("cat")
	require.True(t, ok)
	return c
}

func TestScopedTypes(t *testing.T) {
	c := cats(t, newMapper(t, adapter.Config{}))

	cat, err := c.New(map[string]any{"name": "  Fluffy ", "color": "GREY", "breed": " Abyssinian"})
	require.NoError(t, err)

	assert.Equal(t, "Fluffy", cat.Get("name"))
	assert.Equal(t, "grey", cat.Get("color"))
	assert.Equal(t, " Abyssinian", cat.Get("breed"))
}

func TestAgeValidation(t *testing.T) {
	c := cats(t, newMapper(t, adapter.Config{}))
	ctx := context.Background()

	tests := []struct {
		age   any
		valid bool
	}{
		{age: 12, valid: true},
		{age: "3", valid: true},
		{age: 2.5, valid: false},
		{age: 41, valid: false},
		{age: -1, valid: false},
	}

	for _, tt := range tests {
		cat, err := c.New(map[string]any{"name": "Fluffy", "age": tt.age})
		require.NoError(t, err)
		err = cat.Validate(ctx)
		if tt.valid {
			assert.NoError(t, err, "age %v", tt.age)
		} else {
			assert.True(t, types.IsValidationFailed(err), "age %v", tt.age)
		}
	}
}

func TestNameIsRequired(t *testing.T) {
	c := cats(t, newMapper(t, adapter.Config{}))

	cat, err := c.New(map[string]any{"age": 3})
	require.NoError(t, err)

	var verrs *types.ValidationErrors
	require.ErrorAs(t, cat.Validate(context.Background()), &verrs)
	assert.Equal(t, 1, verrs.Count())
}

func TestSeedInMemory(t *testing.T) {
	c := cats(t, newMapper(t, adapter.Config{Driver: "memory"}))
	ctx := context.Background()

	n, err := Seed(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = Seed(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	total, err := c.CountAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	fluffies, err := c.CountSome(ctx, map[string]any{"name": "Fluffy"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), fluffies)

	page, err := c.Some(ctx, nil, &adapter.MultiOptions{Sort: "name", Page: 2, Limit: 1})
	require.NoError(t, err)
	require.Equal(t, 1, page.Len())
	assert.Equal(t, "Rt Hon. Douglas Meow", page.Items[0].Get("name"))
}

func TestSeedSQLite(t *testing.T) {
	m := newMapper(t, adapter.Config{Driver: "sqlite3", Database: ":memory:"})
	ctx := context.Background()

	a, ok := m.Adapter("default")
	require.True(t, ok)
	store, ok := a.(*instrumented.Adapter).Unwrap().(*sqlstore.Store)
	require.True(t, ok)
	require.NoError(t, Migrate(ctx, store.DB(), store.Dialect()))

	c := cats(t, m)
	n, err := Seed(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	all, err := c.All(ctx, &adapter.MultiOptions{Sort: "-age"})
	require.NoError(t, err)
	require.Equal(t, 2, all.Len())

	fluffy := all.Items[0]
	assert.Equal(t, "Fluffy", fluffy.Get("name"))
	assert.Equal(t, float64(12), fluffy.Get("age"))
	assert.Equal(t, true, fluffy.Get("isActive"))
	assert.Equal(t, time.Date(2017, 8, 28, 20, 17, 25, 601000000, time.UTC), fluffy.Get("createdAt"))

	active, err := c.CountSome(ctx, map[string]any{"isActive": true, "age": "10"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), active)
}

func TestSchema(t *testing.T) {
	assert.Contains(t, Schema(sqlstore.SQLite), "AUTOINCREMENT")
	assert.Contains(t, Schema(sqlstore.Postgres), "SERIAL")
	assert.Contains(t, Schema(sqlstore.Postgres), "is_active")
}

func TestFixturesAreFreshCopies(t *testing.T) {
	first := Fixtures()
	first[0]["name"] = "Changed"
	assert.Equal(t, "Fluffy", Fixtures()[0]["name"])
}
