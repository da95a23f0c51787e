package httpapi

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/conduit-lang/datamap/pkg/orm/adapter"
)

// parseFilter collects filter[attr]=value parameters into an equality filter
func parseFilter(q url.Values) map[string]any {
	var where map[string]any
	for key, values := range q {
		if !strings.HasPrefix(key, "filter[") || !strings.HasSuffix(key, "]") || len(values) == 0 {
			continue
		}
		attr := key[len("filter[") : len(key)-1]
		if where == nil {
			where = make(map[string]any)
		}
		where[attr] = values[0]
	}
	return where
}

// parseFields splits a comma-separated field list
func parseFields(q url.Values) []string {
	raw := q.Get("fields")
	if raw == "" {
		return nil
	}
	var fields []string
	for _, f := range strings.Split(raw, ",") {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}
	return fields
}

func parsePositive(q url.Values, name string) (int, error) {
	raw := q.Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &badRequest{Parameter: name, Err: err}
	}
	if n < 1 {
		return 0, &badRequest{Parameter: name, Err: fmt.Errorf("must be at least 1, got %d", n)}
	}
	return n, nil
}

// parseMulti reads the page, limit, sort and fields parameters
func parseMulti(r *http.Request) (*adapter.MultiOptions, error) {
	q := r.URL.Query()

	page, err := parsePositive(q, "page")
	if err != nil {
		return nil, err
	}
	limit, err := parsePositive(q, "limit")
	if err != nil {
		return nil, err
	}

	return &adapter.MultiOptions{
		Fields: parseFields(q),
		Sort:   q.Get("sort"),
		Page:   page,
		Limit:  limit,
	}, nil
}

// parseSingle reads the fields parameter
func parseSingle(r *http.Request) *adapter.SingleOptions {
	return &adapter.SingleOptions{Fields: parseFields(r.URL.Query())}
}
