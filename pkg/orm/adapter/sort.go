package adapter

import (
	"strings"

	"github.com/conduit-lang/datamap/pkg/orm/schema"
)

// SortField is one term of a sort expression
type SortField struct {
	Attribute  string
	Descending bool
}

// Direction returns the SQL direction keyword for the term
func (s SortField) Direction() string {
	if s.Descending {
		return "DESC"
	}
	return "ASC"
}

// ParseSort splits a comma separated sort expression into its terms.
// Terms prefixed with '-' sort descending; whitespace around terms is
// ignored. Every attribute must be registered on the model.
//
// Example: "-createdAt, name" -> [{createdAt desc} {name asc}]
func ParseSort(m *schema.Model, expr string) ([]SortField, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, nil
	}

	var fields []SortField
	var names []string
	for _, token := range strings.Split(expr, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}

		field := SortField{Attribute: token}
		if strings.HasPrefix(token, "-") {
			field.Descending = true
			field.Attribute = strings.TrimSpace(token[1:])
		}
		fields = append(fields, field)
		names = append(names, field.Attribute)
	}

	if err := m.CheckKeys(names...); err != nil {
		return nil, err
	}
	return fields, nil
}

// BuildOrderBy renders sort terms as an ORDER BY clause using the model's
// column names. quote wraps each column identifier.
//
// Example: [{createdAt desc}] -> `ORDER BY "created_at" DESC`
func BuildOrderBy(m *schema.Model, fields []SortField, quote func(string) string) string {
	if len(fields) == 0 {
		return ""
	}

	exprs := make([]string, 0, len(fields))
	for _, f := range fields {
		exprs = append(exprs, quote(m.Column(f.Attribute))+" "+f.Direction())
	}
	return "ORDER BY " + strings.Join(exprs, ", ")
}
