package adapter

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/conduit-lang/datamap/pkg/orm/schema"
)

// Pagination defaults applied when a multi-record read leaves them unset
const (
	DefaultPage  = 1
	DefaultLimit = 20
)

// PageOrDefault returns the requested page, or DefaultPage
func (o *MultiOptions) PageOrDefault() int {
	if o == nil || o.Page <= 0 {
		return DefaultPage
	}
	return o.Page
}

// LimitOrDefault returns the requested limit, or DefaultLimit
func (o *MultiOptions) LimitOrDefault() int {
	if o == nil || o.Limit <= 0 {
		return DefaultLimit
	}
	return o.Limit
}

// Offset returns the number of records skipped before the requested page
func (o *MultiOptions) Offset() int {
	limit := o.LimitOrDefault()
	return o.PageOrDefault()*limit - limit
}

// SortExpr returns the sort expression, or "" for a nil receiver
func (o *MultiOptions) SortExpr() string {
	if o == nil {
		return ""
	}
	return o.Sort
}

// FieldList returns the requested fields of a multi-record read
func (o *MultiOptions) FieldList() []string {
	if o == nil {
		return nil
	}
	return o.Fields
}

// FieldList returns the requested fields of a single-record read
func (o *SingleOptions) FieldList() []string {
	if o == nil {
		return nil
	}
	return o.Fields
}

// ProjectFields returns the attributes a read selects. An empty request
// selects every registered attribute; otherwise the identifier is always
// included, first, and unknown fields are rejected.
func ProjectFields(m *schema.Model, fields []string) ([]string, error) {
	if len(fields) == 0 {
		return m.Names(), nil
	}
	if err := m.CheckKeys(fields...); err != nil {
		return nil, err
	}

	out := []string{m.IDField()}
	seen := map[string]bool{m.IDField(): true}
	for _, f := range fields {
		if seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out, nil
}

// Matches reports whether a stored record satisfies an equality filter.
// Values are compared in their printed form so that a stored value and a
// filter value produced by the same handler compare equal.
func Matches(rec Record, where Where) bool {
	for k, want := range where {
		got, ok := rec[k]
		if !ok {
			if want != nil {
				return false
			}
			continue
		}
		if !wireEqual(got, want) {
			return false
		}
	}
	return true
}

func wireEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

// Project returns a copy of the record holding only the given attributes
func Project(rec Record, fields []string) Record {
	out := make(Record, len(fields))
	for _, f := range fields {
		if v, ok := rec[f]; ok {
			out[f] = v
		}
	}
	return out
}

// SortRecords orders records in place. Values that parse as numbers are
// compared numerically, everything else by its printed form; nil sorts first.
func SortRecords(records []Record, fields []SortField) {
	if len(fields) == 0 {
		return
	}
	sort.SliceStable(records, func(i, j int) bool {
		for _, f := range fields {
			c := compareValues(records[i][f.Attribute], records[j][f.Attribute])
			if c == 0 {
				continue
			}
			if f.Descending {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

// Paginate returns the slice of records on the requested page
func Paginate(records []Record, opts *MultiOptions) []Record {
	offset := opts.Offset()
	if offset >= len(records) {
		return []Record{}
	}
	end := offset + opts.LimitOrDefault()
	if end > len(records) {
		end = len(records)
	}
	return records[offset:end]
}

func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}

	sa, sb := fmt.Sprint(a), fmt.Sprint(b)
	fa, errA := strconv.ParseFloat(sa, 64)
	fb, errB := strconv.ParseFloat(sb, 64)
	if errA == nil && errB == nil {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}

	switch {
	case sa < sb:
		return -1
	case sa > sb:
		return 1
	}
	return 0
}
