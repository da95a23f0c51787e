package sqlstore

import (
	"database/sql"

	"github.com/conduit-lang/datamap/pkg/orm/adapter"
	"github.com/conduit-lang/datamap/pkg/orm/schema"
)

// attributeFor maps a result column back to its attribute name. Columns
// that are neither an attribute nor an attribute's column keep their name.
func attributeFor(m *schema.Model, column string) string {
	if m.Has(column) {
		return column
	}
	for _, name := range m.Names() {
		if m.Column(name) == column {
			return name
		}
	}
	return column
}

func normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// scanRecords reads every row into a record keyed by attribute name
func scanRecords(m *schema.Model, rows *sql.Rows) ([]adapter.Record, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	attrs := make([]string, len(columns))
	for i, col := range columns {
		attrs[i] = attributeFor(m, col)
	}

	records := []adapter.Record{}
	for rows.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}

		rec := make(adapter.Record, len(columns))
		for i, attr := range attrs {
			rec[attr] = normalize(values[i])
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// scanFirst reads the first row, or returns nil when there is none
func scanFirst(m *schema.Model, rows *sql.Rows) (adapter.Record, error) {
	records, err := scanRecords(m, rows)
	if err != nil || len(records) == 0 {
		return nil, err
	}
	return records[0], nil
}
