package sqlstore

import (
	"sort"
	"strconv"
	"strings"

	"github.com/conduit-lang/datamap/pkg/orm/adapter"
	"github.com/conduit-lang/datamap/pkg/orm/schema"
)

// builder accumulates a statement's arguments and numbers its placeholders
type builder struct {
	dialect Dialect
	model   *schema.Model
	args    []any
}

func (s *Store) builder(m *schema.Model) *builder {
	return &builder{dialect: s.dialect, model: m}
}

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func (b *builder) arg(v any) string {
	b.args = append(b.args, v)
	if b.dialect == SQLite {
		return "?"
	}
	return "$" + strconv.Itoa(len(b.args))
}

func (b *builder) table() string {
	return quote(b.model.Table())
}

func (b *builder) column(attr string) string {
	return quote(b.model.Column(attr))
}

// selectList renders the attributes as aliased columns
func (b *builder) selectList(attrs []string) string {
	cols := make([]string, len(attrs))
	for i, attr := range attrs {
		col := b.model.Column(attr)
		if col == attr {
			cols[i] = quote(col)
		} else {
			cols[i] = quote(col) + " AS " + quote(attr)
		}
	}
	return strings.Join(cols, ", ")
}

// where renders an equality filter. Keys are emitted in sorted order.
func (b *builder) where(where adapter.Where) string {
	if len(where) == 0 {
		return ""
	}

	keys := where.Keys()
	sort.Strings(keys)

	conds := make([]string, len(keys))
	for i, k := range keys {
		if where[k] == nil {
			conds[i] = b.column(k) + " IS NULL"
			continue
		}
		conds[i] = b.column(k) + " = " + b.arg(where[k])
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

func (b *builder) whereID(id any) string {
	return " WHERE " + b.column(b.model.IDField()) + " = " + b.arg(id)
}

// oneMatching restricts a statement to the first row matching where
func (b *builder) oneMatching(where adapter.Where) string {
	id := b.column(b.model.IDField())
	return " WHERE " + id + " IN (SELECT " + id + " FROM " + b.table() + b.where(where) + " LIMIT 1)"
}

// set renders an assignment list. Keys are emitted in sorted order and the
// identifier is never assigned.
func (b *builder) set(props adapter.Record) string {
	keys := make([]string, 0, len(props))
	for k := range props {
		if k == b.model.IDField() {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	assigns := make([]string, len(keys))
	for i, k := range keys {
		assigns[i] = b.column(k) + " = " + b.arg(props[k])
	}
	return strings.Join(assigns, ", ")
}

// insert renders an INSERT for props. Nil values are left to column defaults.
func (b *builder) insert(props adapter.Record) string {
	keys := make([]string, 0, len(props))
	for k, v := range props {
		if v != nil {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	if len(keys) == 0 {
		return "INSERT INTO " + b.table() + " DEFAULT VALUES"
	}

	cols := make([]string, len(keys))
	placeholders := make([]string, len(keys))
	for i, k := range keys {
		cols[i] = b.column(k)
		placeholders[i] = b.arg(props[k])
	}
	return "INSERT INTO " + b.table() + " (" + strings.Join(cols, ", ") + ") VALUES (" + strings.Join(placeholders, ", ") + ")"
}

func (b *builder) limitOffset(opts *adapter.MultiOptions) string {
	return " LIMIT " + strconv.Itoa(opts.LimitOrDefault()) + " OFFSET " + strconv.Itoa(opts.Offset())
}

func (b *builder) orderBy(fields []adapter.SortField) string {
	clause := adapter.BuildOrderBy(b.model, fields, quote)
	if clause == "" {
		return ""
	}
	return " " + clause
}
