package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/conduit-lang/datamap/pkg/orm/adapter"
	"github.com/conduit-lang/datamap/pkg/orm/schema"
)

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("sqlstore: %s: %w", op, ConvertDBError(err))
}

func (s *Store) queryRecords(ctx context.Context, m *schema.Model, query string, args []any) ([]adapter.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(m, rows)
}

func (s *Store) queryFirst(ctx context.Context, q queryer, m *schema.Model, query string, args []any) (adapter.Record, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanFirst(m, rows)
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Store) exec(ctx context.Context, query string, args []any) (int64, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// One returns the first record matching where
func (s *Store) One(ctx context.Context, m *schema.Model, where adapter.Where, opts *adapter.SingleOptions) (adapter.Record, error) {
	fields, err := adapter.ProjectFields(m, opts.FieldList())
	if err != nil {
		return nil, err
	}

	b := s.builder(m)
	query := "SELECT " + b.selectList(fields) + " FROM " + b.table() + b.where(where) + " LIMIT 1"
	rec, err := s.queryFirst(ctx, s.db, m, query, b.args)
	return rec, wrap("one", err)
}

// OneByID returns the record with the given identifier
func (s *Store) OneByID(ctx context.Context, m *schema.Model, id any, opts *adapter.SingleOptions) (adapter.Record, error) {
	fields, err := adapter.ProjectFields(m, opts.FieldList())
	if err != nil {
		return nil, err
	}

	b := s.builder(m)
	query := "SELECT " + b.selectList(fields) + " FROM " + b.table() + b.whereID(id) + " LIMIT 1"
	rec, err := s.queryFirst(ctx, s.db, m, query, b.args)
	return rec, wrap("one by id", err)
}

// OneBySQL runs a raw query and returns its first row
func (s *Store) OneBySQL(ctx context.Context, m *schema.Model, query string, params []any, opts *adapter.SingleOptions) (adapter.Record, error) {
	rec, err := s.queryFirst(ctx, s.db, m, query, params)
	if err != nil || rec == nil {
		return nil, wrap("one by sql", err)
	}
	if fields := opts.FieldList(); len(fields) > 0 {
		projected, err := adapter.ProjectFields(m, fields)
		if err != nil {
			return nil, err
		}
		rec = adapter.Project(rec, projected)
	}
	return rec, nil
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

	b := s.builder(m)
	query := "SELECT " + b.selectList(fields) + " FROM " + b.table() + b.where(where) + b.orderBy(order) + b.limitOffset(opts)
	records, err := s.queryRecords(ctx, m, query, b.args)
	return records, wrap("some", err)
}

// SomeBySQL runs a raw query and returns every row
func (s *Store) SomeBySQL(ctx context.Context, m *schema.Model, query string, params []any, opts *adapter.MultiOptions) ([]adapter.Record, error) {
	records, err := s.queryRecords(ctx, m, query, params)
	if err != nil {
		return nil, wrap("some by sql", err)
	}
	if fields := opts.FieldList(); len(fields) > 0 {
		projected, err := adapter.ProjectFields(m, fields)
		if err != nil {
			return nil, err
		}
		for i, rec := range records {
			records[i] = adapter.Project(rec, projected)
		}
	}
	return records, nil
}

// All returns every record, sorted and paginated
func (s *Store) All(ctx context.Context, m *schema.Model, opts *adapter.MultiOptions) ([]adapter.Record, error) {
	return s.Some(ctx, m, nil, opts)
}

func (s *Store) insertReturning(ctx context.Context, q queryer, m *schema.Model, props adapter.Record) (adapter.Record, error) {
	b := s.builder(m)
	insert := b.insert(props)
	query := insert + " RETURNING " + b.selectList(m.Names())
	return s.queryFirst(ctx, q, m, query, b.args)
}

// CreateRecord inserts a record and returns the stored row
func (s *Store) CreateRecord(ctx context.Context, m *schema.Model, props adapter.Record) (adapter.Record, error) {
	rec, err := s.insertReturning(ctx, s.db, m, props)
	return rec, wrap("create record", err)
}

// CreateSome inserts every record inside one transaction
func (s *Store) CreateSome(ctx context.Context, m *schema.Model, records []adapter.Record) (int64, error) {
	var n int64
	err := s.withTransaction(ctx, func(tx *sql.Tx) error {
		for _, props := range records {
			b := s.builder(m)
			query := b.insert(props)
			res, err := tx.ExecContext(ctx, query, b.args...)
			if err != nil {
				return err
			}
			affected, err := res.RowsAffected()
			if err != nil {
				return err
			}
			n += affected
		}
		return nil
	})
	if err != nil {
		return 0, wrap("create some", err)
	}
	return n, nil
}

// UpdateRecord applies props to the record with the given identifier and
// returns the stored row, or nil when no such record exists
func (s *Store) UpdateRecord(ctx context.Context, m *schema.Model, id any, props adapter.Record) (adapter.Record, error) {
	b := s.builder(m)
	set := b.set(props)
	if set == "" {
		return s.OneByID(ctx, m, id, nil)
	}

	where := b.whereID(id)
	query := "UPDATE " + b.table() + " SET " + set + where + " RETURNING " + b.selectList(m.Names())
	rec, err := s.queryFirst(ctx, s.db, m, query, b.args)
	return rec, wrap("update record", err)
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
	b := s.builder(m)
	query := "DELETE FROM " + b.table() + b.where(where)
	n, err := s.exec(ctx, query, b.args)
	return n, wrap("delete some", err)
}

// DeleteOne removes the first record matching where
func (s *Store) DeleteOne(ctx context.Context, m *schema.Model, where adapter.Where) (int64, error) {
	b := s.builder(m)
	query := "DELETE FROM " + b.table() + b.oneMatching(where)
	n, err := s.exec(ctx, query, b.args)
	return n, wrap("delete one", err)
}

// DeleteOneByID removes the record with the given identifier
func (s *Store) DeleteOneByID(ctx context.Context, m *schema.Model, id any) (int64, error) {
	b := s.builder(m)
	query := "DELETE FROM " + b.table() + b.whereID(id)
	n, err := s.exec(ctx, query, b.args)
	return n, wrap("delete one by id", err)
}

// UpdateAll applies props to every record
func (s *Store) UpdateAll(ctx context.Context, m *schema.Model, props adapter.Record) (int64, error) {
	return s.UpdateSome(ctx, m, nil, props)
}

// UpdateSome applies props to the records matching where
func (s *Store) UpdateSome(ctx context.Context, m *schema.Model, where adapter.Where, props adapter.Record) (int64, error) {
	b := s.builder(m)
	set := b.set(props)
	if set == "" {
		return s.CountSome(ctx, m, where)
	}
	cond := b.where(where)
	n, err := s.exec(ctx, "UPDATE "+b.table()+" SET "+set+cond, b.args)
	return n, wrap("update some", err)
}

// UpdateOne applies props to the first record matching where
func (s *Store) UpdateOne(ctx context.Context, m *schema.Model, where adapter.Where, props adapter.Record) (int64, error) {
	b := s.builder(m)
	set := b.set(props)
	if set == "" {
		n, err := s.CountSome(ctx, m, where)
		return min(n, 1), err
	}
	cond := b.oneMatching(where)
	n, err := s.exec(ctx, "UPDATE "+b.table()+" SET "+set+cond, b.args)
	return n, wrap("update one", err)
}

// UpdateOneByID applies props to the record with the given identifier
func (s *Store) UpdateOneByID(ctx context.Context, m *schema.Model, id any, props adapter.Record) (int64, error) {
	b := s.builder(m)
	set := b.set(props)
	if set == "" {
		n, err := s.CountSome(ctx, m, adapter.Where{m.IDField(): id})
		return n, err
	}
	cond := b.whereID(id)
	n, err := s.exec(ctx, "UPDATE "+b.table()+" SET "+set+cond, b.args)
	return n, wrap("update one by id", err)
}

// Truncate removes every record without reporting a count
func (s *Store) Truncate(ctx context.Context, m *schema.Model) error {
	b := s.builder(m)
	query := "TRUNCATE TABLE " + b.table()
	if s.dialect == SQLite {
		query = "DELETE FROM " + b.table()
	}
	_, err := s.db.ExecContext(ctx, query)
	return wrap("truncate", err)
}

// CountAll returns the number of records
func (s *Store) CountAll(ctx context.Context, m *schema.Model) (int64, error) {
	return s.CountSome(ctx, m, nil)
}

// CountSome returns the number of records matching where
func (s *Store) CountSome(ctx context.Context, m *schema.Model, where adapter.Where) (int64, error) {
	b := s.builder(m)
	query := "SELECT COUNT(*) FROM " + b.table() + b.where(where)

	var n int64
	if err := s.db.QueryRowContext(ctx, query, b.args...).Scan(&n); err != nil {
		return 0, wrap("count", err)
	}
	return n, nil
}
