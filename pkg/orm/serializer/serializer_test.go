package serializer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/datamap/pkg/orm/schema"
	"github.com/conduit-lang/datamap/pkg/orm/types"
)

func catModel(t *testing.T) *schema.Model {
	t.Helper()
	m, err := schema.Define("cat").Attr("name", "string").Attr("tags", "json").MustBuild().Resolve(types.Defaults())
	require.NoError(t, err)
	return m
}

func TestDefaultIsDeepCopy(t *testing.T) {
	born := time.Date(2017, 8, 28, 20, 17, 25, 0, time.UTC)
	payload := map[string]any{
		"id":   float64(1),
		"name": "Fluffy",
		"born": born,
		"tags": []any{"grey", map[string]any{"indoor": true}},
	}

	out, err := Default{}.Serialize(catModel(t), payload, nil)
	require.NoError(t, err)
	assert.Equal(t, payload, out)

	copied := out.(map[string]any)
	copied["name"] = "Changed"
	copied["tags"].([]any)[1].(map[string]any)["indoor"] = false

	assert.Equal(t, "Fluffy", payload["name"])
	assert.Equal(t, true, payload["tags"].([]any)[1].(map[string]any)["indoor"])
}

func TestDefaultCollection(t *testing.T) {
	payload := []map[string]any{{"name": "Fluffy"}, {"name": "Douglas"}}
	out, err := Default{}.Serialize(catModel(t), payload, nil)
	require.NoError(t, err)
	assert.Equal(t, payload, out)

	out.([]map[string]any)[0]["name"] = "Changed"
	assert.Equal(t, "Fluffy", payload[0]["name"])
}

func TestJSONAPISingle(t *testing.T) {
	out, err := JSONAPI{}.Serialize(catModel(t), map[string]any{"id": float64(1), "name": "Fluffy"}, Options{
		"meta": map[string]any{"version": "1"},
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"data": map[string]any{
			"type":       "cats",
			"id":         "1",
			"attributes": map[string]any{"name": "Fluffy"},
		},
		"meta": map[string]any{"version": "1"},
	}, out)
}

func TestJSONAPICollection(t *testing.T) {
	links := PaginationLinks("/cats", 1, 1, 2)
	out, err := JSONAPI{}.Serialize(catModel(t), []map[string]any{
		{"id": float64(1), "name": "Fluffy"},
		{"name": "Unsaved"},
	}, Options{"links": links})
	require.NoError(t, err)

	doc := out.(map[string]any)
	data := doc["data"].([]any)
	require.Len(t, data, 2)
	assert.Equal(t, "1", data[0].(map[string]any)["id"])
	assert.NotContains(t, data[1].(map[string]any), "id")
	assert.Equal(t, links, doc["links"])
}

func TestJSONAPIRejectsScalars(t *testing.T) {
	_, err := JSONAPI{}.Serialize(catModel(t), 42, nil)
	assert.Error(t, err)

	_, err = JSONAPI{}.Serialize(catModel(t), []any{"x"}, nil)
	assert.Error(t, err)
}

func TestPaginationLinks(t *testing.T) {
	links := PaginationLinks("/cats?sort=name", 2, 1, 3)
	assert.Equal(t, "/cats?limit=1&page=2&sort=name", links["self"])
	assert.Equal(t, "/cats?limit=1&page=1&sort=name", links["first"])
	assert.Equal(t, "/cats?limit=1&page=3&sort=name", links["last"])
	assert.Equal(t, "/cats?limit=1&page=1&sort=name", links["prev"])
	assert.Equal(t, "/cats?limit=1&page=3&sort=name", links["next"])

	links = PaginationLinks("/cats", 1, 20, 0)
	assert.NotContains(t, links, "prev")
	assert.NotContains(t, links, "next")
	assert.Equal(t, "/cats?limit=20&page=1", links["last"])
}

func TestFunc(t *testing.T) {
	f := Func(func(m *schema.Model, payload any, _ Options) (any, error) {
		return m.Name(), nil
	})
	out, err := f.Serialize(catModel(t), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "cat", out)
}

func TestDefaults(t *testing.T) {
	d := Defaults()
	assert.Contains(t, d, "default")
	assert.Contains(t, d, "jsonapi")
}
