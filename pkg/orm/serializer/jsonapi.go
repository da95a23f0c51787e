package serializer

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/conduit-lang/datamap/pkg/orm/schema"
)

// MediaType is the JSON:API media type
const MediaType = "application/vnd.api+json"

// JSONAPI wraps payloads in a JSON:API document:
//
//	{"data": {"type": "cats", "id": "1", "attributes": {...}}}
//
// Recognized options: "meta" (map[string]any) and "links" (map[string]string)
// are copied to the top level of the document.
type JSONAPI struct{}

// Serialize implements Serializer
func (JSONAPI) Serialize(m *schema.Model, payload any, opts Options) (any, error) {
	doc := map[string]any{}

	switch p := payload.(type) {
	case map[string]any:
		doc["data"] = resource(m, p)
	case []map[string]any:
		data := make([]any, len(p))
		for i, item := range p {
			data[i] = resource(m, item)
		}
		doc["data"] = data
	case []any:
		data := make([]any, len(p))
		for i, item := range p {
			obj, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("jsonapi: element %d is %T, not an object", i, item)
			}
			data[i] = resource(m, obj)
		}
		doc["data"] = data
	case nil:
		doc["data"] = nil
	default:
		return nil, fmt.Errorf("jsonapi: cannot serialize %T", payload)
	}

	if meta, ok := opts["meta"].(map[string]any); ok {
		doc["meta"] = Clone(meta)
	}
	if links, ok := opts["links"].(map[string]string); ok {
		doc["links"] = links
	}
	return doc, nil
}

// ResourceType returns the JSON:API type name of a model
func ResourceType(m *schema.Model) string {
	return schema.Pluralize(m.Name())
}

func resource(m *schema.Model, obj map[string]any) map[string]any {
	attrs := make(map[string]any, len(obj))
	var id any
	for k, v := range obj {
		if k == m.IDField() {
			id = v
			continue
		}
		attrs[k] = Clone(v)
	}

	res := map[string]any{
		"type":       ResourceType(m),
		"attributes": attrs,
	}
	if id != nil {
		res["id"] = fmt.Sprint(id)
	}
	return res
}

// PaginationLinks builds the self, first, last, prev and next links of a
// page of a collection.
func PaginationLinks(baseURL string, page, limit int, total int64) map[string]string {
	if limit < 1 {
		limit = 1
	}
	totalPages := int((total + int64(limit) - 1) / int64(limit))
	if totalPages < 1 {
		totalPages = 1
	}

	links := map[string]string{
		"self":  pageURL(baseURL, page, limit),
		"first": pageURL(baseURL, 1, limit),
		"last":  pageURL(baseURL, totalPages, limit),
	}
	if page > 1 {
		links["prev"] = pageURL(baseURL, page-1, limit)
	}
	if page < totalPages {
		links["next"] = pageURL(baseURL, page+1, limit)
	}
	return links
}

func pageURL(baseURL string, page, limit int) string {
	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Sprintf("%s?limit=%d&page=%d", baseURL, limit, page)
	}

	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	u.RawQuery = q.Encode()
	return u.String()
}
