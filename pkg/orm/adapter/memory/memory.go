// Package memory implements an in-process adapter. Each table is an ordered
// B-tree of records keyed by identifier; identifiers are assigned from a
// per-table counter when a record is created without one.
package memory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"

	"github.com/tidwall/btree"

	"github.com/conduit-lang/datamap/pkg/orm/adapter"
	"github.com/conduit-lang/datamap/pkg/orm/schema"
)

// ErrDestroyed is returned by operations on a destroyed store
var ErrDestroyed = errors.New("memory store is destroyed")

// Store is the in-process adapter
type Store struct {
	mu     sync.RWMutex
	tables map[string]*table
	closed bool
}

var _ adapter.Adapter = (*Store)(nil)

// New returns an empty store
func New() *Store {
	return &Store{tables: make(map[string]*table)}
}

// Factory builds a store; the storage configuration is ignored
func Factory(_ context.Context, _ adapter.Config) (adapter.Adapter, error) {
	return New(), nil
}

type key struct {
	num   float64
	str   string
	isNum bool
}

func newKey(id any) key {
	s := fmt.Sprint(id)
	// nan and inf parse as floats but do not order, so they stay strings
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return key{num: f, str: s, isNum: true}
	}
	return key{str: s}
}

func (k key) less(other key) bool {
	switch {
	case k.isNum && other.isNum:
		return k.num < other.num
	case k.isNum != other.isNum:
		return k.isNum
	}
	return k.str < other.str
}

type row struct {
	key key
	rec adapter.Record
}

func byKey(a, b interface{}) bool {
	return a.(*row).key.less(b.(*row).key)
}

type table struct {
	rows *btree.BTree
	seq  int64
}

func newTable() *table {
	return &table{rows: btree.NewNonConcurrent(byKey)}
}

func (t *table) get(id any) *row {
	item := t.rows.Get(&row{key: newKey(id)})
	if item == nil {
		return nil
	}
	return item.(*row)
}

// scan returns the rows matching where in identifier order
func (t *table) scan(where adapter.Where) []*row {
	var out []*row
	t.rows.Ascend(nil, func(item interface{}) bool {
		r := item.(*row)
		if adapter.Matches(r.rec, where) {
			out = append(out, r)
		}
		return true
	})
	return out
}

func (s *Store) table(m *schema.Model) *table {
	t, ok := s.tables[m.Table()]
	if !ok {
		t = newTable()
		s.tables[m.Table()] = t
	}
	return t
}

func (s *Store) read(fn func() error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrDestroyed
	}
	return fn()
}

func (s *Store) write(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrDestroyed
	}
	return fn()
}

func (s *Store) existing(m *schema.Model) *table {
	if t, ok := s.tables[m.Table()]; ok {
		return t
	}
	return newTable()
}

// One returns the first record, in identifier order, matching where
func (s *Store) One(ctx context.Context, m *schema.Model, where adapter.Where, opts *adapter.SingleOptions) (adapter.Record, error) {
	fields, err := adapter.ProjectFields(m, opts.FieldList())
	if err != nil {
		return nil, err
	}

	var out adapter.Record
	err = s.read(func() error {
		rows := s.existing(m).scan(where)
		if len(rows) > 0 {
			out = adapter.Project(rows[0].rec, fields)
		}
		return nil
	})
	return out, err
}

// OneByID returns the record with the given identifier
func (s *Store) OneByID(ctx context.Context, m *schema.Model, id any, opts *adapter.SingleOptions) (adapter.Record, error) {
	fields, err := adapter.ProjectFields(m, opts.FieldList())
	if err != nil {
		return nil, err
	}

	var out adapter.Record
	err = s.read(func() error {
		if r := s.existing(m).get(id); r != nil {
			out = adapter.Project(r.rec, fields)
		}
		return nil
	})
	return out, err
}

// OneBySQL is not supported
func (s *Store) OneBySQL(context.Context, *schema.Model, string, []any, *adapter.SingleOptions) (adapter.Record, error) {
	return nil, fmt.Errorf("memory: one by sql: %w", adapter.ErrUnsupported)
}

// Some returns the records matching where, sorted and paginated
func (s *Store) Some(ctx context.Context, m *schema.Model, where adapter.Where, opts *adapter.MultiOptions) ([]adapter.Record, error) {
	fields, err := adapter.ProjectFields(m, opts.FieldList())
	if err != nil {
		return nil, err
	}
	order, err := adapter.ParseSort(m, opts.SortExpr())
	if err != nil {
		return nil, err
	}

	var records []adapter.Record
	err = s.read(func() error {
		for _, r := range s.existing(m).scan(where) {
			records = append(records, r.rec.Clone())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	adapter.SortRecords(records, order)
	page := adapter.Paginate(records, opts)
	out := make([]adapter.Record, len(page))
	for i, rec := range page {
		out[i] = adapter.Project(rec, fields)
	}
	return out, nil
}

// SomeBySQL is not supported
func (s *Store) SomeBySQL(context.Context, *schema.Model, string, []any, *adapter.MultiOptions) ([]adapter.Record, error) {
	return nil, fmt.Errorf("memory: some by sql: %w", adapter.ErrUnsupported)
}

// All returns every record, sorted and paginated
func (s *Store) All(ctx context.Context, m *schema.Model, opts *adapter.MultiOptions) ([]adapter.Record, error) {
	return s.Some(ctx, m, nil, opts)
}

// CreateRecord inserts a record and returns it as stored
func (s *Store) CreateRecord(ctx context.Context, m *schema.Model, props adapter.Record) (adapter.Record, error) {
	var out adapter.Record
	err := s.write(func() error {
		rec, err := s.insert(m, props)
		if err != nil {
			return err
		}
		out = rec.Clone()
		return nil
	})
	return out, err
}

// CreateSome inserts every record or none of them
func (s *Store) CreateSome(ctx context.Context, m *schema.Model, records []adapter.Record) (int64, error) {
	var n int64
	err := s.write(func() error {
		t := s.table(m)
		seq := t.seq
		var inserted []any
		for _, props := range records {
			rec, err := s.insert(m, props)
			if err != nil {
				for _, id := range inserted {
					t.rows.Delete(&row{key: newKey(id)})
				}
				t.seq = seq
				return err
			}
			inserted = append(inserted, rec[m.IDField()])
			n++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// insert must be called with the write lock held
func (s *Store) insert(m *schema.Model, props adapter.Record) (adapter.Record, error) {
	t := s.table(m)
	idField := m.IDField()

	rec := make(adapter.Record, len(m.Names()))
	for _, name := range m.Names() {
		rec[name] = nil
	}
	for k, v := range props {
		rec[k] = v
	}

	if rec[idField] == nil {
		t.seq++
		rec[idField] = t.seq
	} else if k := newKey(rec[idField]); k.isNum && k.num < math.MaxInt64 && int64(k.num) > t.seq {
		t.seq = int64(k.num)
	}

	k := newKey(rec[idField])
	if t.rows.Get(&row{key: k}) != nil {
		return nil, fmt.Errorf("memory: %s: duplicate %s %v", m.Table(), idField, rec[idField])
	}
	t.rows.Set(&row{key: k, rec: rec})
	return rec, nil
}

// UpdateRecord merges props into the record with the given identifier and
// returns it, or nil when no such record exists
func (s *Store) UpdateRecord(ctx context.Context, m *schema.Model, id any, props adapter.Record) (adapter.Record, error) {
	var out adapter.Record
	err := s.write(func() error {
		r := s.table(m).get(id)
		if r == nil {
			return nil
		}
		apply(m, r, props)
		out = r.rec.Clone()
		return nil
	})
	return out, err
}

func apply(m *schema.Model, r *row, props adapter.Record) {
	for k, v := range props {
		if k == m.IDField() {
			continue
		}
		r.rec[k] = v
	}
}

// DeleteRecord removes the record with the given identifier
func (s *Store) DeleteRecord(ctx context.Context, m *schema.Model, id any) error {
	_, err := s.DeleteOneByID(ctx, m, id)
	return err
}

// DeleteAll removes every record
func (s *Store) DeleteAll(ctx context.Context, m *schema.Model) (int64, error) {
	return s.DeleteSome(ctx, m, nil)
}

// DeleteSome removes the records matching where
func (s *Store) DeleteSome(ctx context.Context, m *schema.Model, where adapter.Where) (int64, error) {
	return s.remove(m, where, -1)
}

// DeleteOne removes the first record matching where
func (s *Store) DeleteOne(ctx context.Context, m *schema.Model, where adapter.Where) (int64, error) {
	return s.remove(m, where, 1)
}

// DeleteOneByID removes the record with the given identifier
func (s *Store) DeleteOneByID(ctx context.Context, m *schema.Model, id any) (int64, error) {
	var n int64
	err := s.write(func() error {
		if s.table(m).rows.Delete(&row{key: newKey(id)}) != nil {
			n = 1
		}
		return nil
	})
	return n, err
}

func (s *Store) remove(m *schema.Model, where adapter.Where, limit int) (int64, error) {
	var n int64
	err := s.write(func() error {
		t := s.table(m)
		for _, r := range t.scan(where) {
			if limit >= 0 && n >= int64(limit) {
				break
			}
			t.rows.Delete(r)
			n++
		}
		return nil
	})
	return n, err
}

// UpdateAll applies props to every record
func (s *Store) UpdateAll(ctx context.Context, m *schema.Model, props adapter.Record) (int64, error) {
	return s.UpdateSome(ctx, m, nil, props)
}

// UpdateSome applies props to the records matching where
func (s *Store) UpdateSome(ctx context.Context, m *schema.Model, where adapter.Where, props adapter.Record) (int64, error) {
	return s.modify(m, where, props, -1)
}

// UpdateOne applies props to the first record matching where
func (s *Store) UpdateOne(ctx context.Context, m *schema.Model, where adapter.Where, props adapter.Record) (int64, error) {
	return s.modify(m, where, props, 1)
}

// UpdateOneByID applies props to the record with the given identifier
func (s *Store) UpdateOneByID(ctx context.Context, m *schema.Model, id any, props adapter.Record) (int64, error) {
	var n int64
	err := s.write(func() error {
		if r := s.table(m).get(id); r != nil {
			apply(m, r, props)
			n = 1
		}
		return nil
	})
	return n, err
}

func (s *Store) modify(m *schema.Model, where adapter.Where, props adapter.Record, limit int) (int64, error) {
	var n int64
	err := s.write(func() error {
		for _, r := range s.table(m).scan(where) {
			if limit >= 0 && n >= int64(limit) {
				break
			}
			apply(m, r, props)
			n++
		}
		return nil
	})
	return n, err
}

// Truncate drops every record and resets the identifier counter
func (s *Store) Truncate(ctx context.Context, m *schema.Model) error {
	return s.write(func() error {
		s.tables[m.Table()] = newTable()
		return nil
	})
}

// CountAll returns the number of records
func (s *Store) CountAll(ctx context.Context, m *schema.Model) (int64, error) {
	var n int64
	err := s.read(func() error {
		n = int64(s.existing(m).rows.Len())
		return nil
	})
	return n, err
}

// CountSome returns the number of records matching where
func (s *Store) CountSome(ctx context.Context, m *schema.Model, where adapter.Where) (int64, error) {
	var n int64
	err := s.read(func() error {
		n = int64(len(s.existing(m).scan(where)))
		return nil
	})
	return n, err
}

// Destroy drops every table. Calling it again is a no-op.
func (s *Store) Destroy(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables = make(map[string]*table)
	s.closed = true
	return nil
}
