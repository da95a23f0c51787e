// Package redisstore implements the adapter contract on Redis. Every record
// is a hash at <prefix><table>:<id>; the identifiers of a table are kept in
// the sorted set <prefix><table>:ids and new identifiers are drawn from the
// counter <prefix><table>:seq.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/conduit-lang/datamap/pkg/orm/adapter"
	"github.com/conduit-lang/datamap/pkg/orm/schema"
)

// ErrDuplicateID is returned when a record is created with an identifier already in use
var ErrDuplicateID = errors.New("duplicate identifier")

// Store is the Redis adapter
type Store struct {
	client *redis.Client
	prefix string

	closeOnce sync.Once
	closeErr  error
}

var _ adapter.Adapter = (*Store)(nil)

// raiseSeq moves the counter up to an explicitly chosen identifier
var raiseSeq = redis.NewScript(`
local cur = tonumber(redis.call('GET', KEYS[1]) or '0')
local id = tonumber(ARGV[1])
if id > cur then
	redis.call('SET', KEYS[1], ARGV[1])
end
return 1
`)

// Open connects to the server described by cfg and checks the connection
func Open(ctx context.Context, cfg adapter.Config) (*Store, error) {
	addr := cfg.Addr
	if addr == "" {
		host, port := cfg.Host, cfg.Port
		if host == "" {
			host = "localhost"
		}
		if port == 0 {
			port = 6379
		}
		addr = net.JoinHostPort(host, strconv.Itoa(port))
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redisstore: unable to connect with config %s: %w", cfg, err)
	}

	return NewWithClient(client, cfg.Prefix), nil
}

// Factory opens a store from its storage configuration
func Factory(ctx context.Context, cfg adapter.Config) (adapter.Adapter, error) {
	s, err := Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// NewWithClient creates a store on an existing client. The store owns the
// client and closes it on Destroy.
func NewWithClient(client *redis.Client, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

func (s *Store) recordKey(m *schema.Model, id string) string {
	return s.prefix + m.Table() + ":" + id
}

func (s *Store) idsKey(m *schema.Model) string {
	return s.prefix + m.Table() + ":ids"
}

func (s *Store) seqKey(m *schema.Model) string {
	return s.prefix + m.Table() + ":seq"
}

func idString(id any) string {
	return fmt.Sprint(id)
}

func score(id string) float64 {
	if f, err := strconv.ParseFloat(id, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return f
	}
	return 0
}

// load reads one record, or nil when it does not exist
func (s *Store) load(ctx context.Context, m *schema.Model, id string) (adapter.Record, error) {
	fields, err := s.client.HGetAll(ctx, s.recordKey(m, id)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return toRecord(m, fields), nil
}

func toRecord(m *schema.Model, fields map[string]string) adapter.Record {
	rec := make(adapter.Record, len(m.Names()))
	for _, name := range m.Names() {
		if v, ok := fields[name]; ok {
			rec[name] = v
		} else {
			rec[name] = nil
		}
	}
	return rec
}

// loadAll reads every record of the table in identifier order
func (s *Store) loadAll(ctx context.Context, m *schema.Model) ([]adapter.Record, error) {
	ids, err := s.client.ZRange(ctx, s.idsKey(m), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, s.recordKey(m, id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	records := make([]adapter.Record, 0, len(ids))
	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		records = append(records, toRecord(m, fields))
	}
	return records, nil
}

func (s *Store) matching(ctx context.Context, m *schema.Model, where adapter.Where) ([]adapter.Record, error) {
	all, err := s.loadAll(ctx, m)
	if err != nil {
		return nil, err
	}
	var out []adapter.Record
	for _, rec := range all {
		if adapter.Matches(rec, where) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("redisstore: %s: %w", op, err)
}

// One returns the first record, in identifier order, matching where
func (s *Store) One(ctx context.Context, m *schema.Model, where adapter.Where, opts *adapter.SingleOptions) (adapter.Record, error) {
	fields, err := adapter.ProjectFields(m, opts.FieldList())
	if err != nil {
		return nil, err
	}
	records, err := s.matching(ctx, m, where)
	if err != nil {
		return nil, wrap("one", err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	return adapter.Project(records[0], fields), nil
}

// OneByID returns the record with the given identifier
func (s *Store) OneByID(ctx context.Context, m *schema.Model, id any, opts *adapter.SingleOptions) (adapter.Record, error) {
	fields, err := adapter.ProjectFields(m, opts.FieldList())
	if err != nil {
		return nil, err
	}
	rec, err := s.load(ctx, m, idString(id))
	if err != nil || rec == nil {
		return nil, wrap("one by id", err)
	}
	return adapter.Project(rec, fields), nil
}

// OneBySQL is not supported
func (s *Store) OneBySQL(context.Context, *schema.Model, string, []any, *adapter.SingleOptions) (adapter.Record, error) {
	return nil, fmt.Errorf("redisstore: one by sql: %w", adapter.ErrUnsupported)
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

	records, err := s.matching(ctx, m, where)
	if err != nil {
		return nil, wrap("some", err)
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
	return nil, fmt.Errorf("redisstore: some by sql: %w", adapter.ErrUnsupported)
}

// All returns every record, sorted and paginated
func (s *Store) All(ctx context.Context, m *schema.Model, opts *adapter.MultiOptions) ([]adapter.Record, error) {
	return s.Some(ctx, m, nil, opts)
}

// insert writes a new record and returns its identifier
func (s *Store) insert(ctx context.Context, m *schema.Model, props adapter.Record) (string, error) {
	idField := m.IDField()

	var id string
	if v := props[idField]; v != nil {
		id = idString(v)
		exists, err := s.client.Exists(ctx, s.recordKey(m, id)).Result()
		if err != nil {
			return "", err
		}
		if exists > 0 {
			return "", fmt.Errorf("%w: %s %s", ErrDuplicateID, idField, id)
		}
		if _, err := strconv.ParseInt(id, 10, 64); err == nil {
			if err := raiseSeq.Run(ctx, s.client, []string{s.seqKey(m)}, id).Err(); err != nil {
				return "", err
			}
		}
	} else {
		next, err := s.client.Incr(ctx, s.seqKey(m)).Result()
		if err != nil {
			return "", err
		}
		id = strconv.FormatInt(next, 10)
	}

	values := map[string]any{idField: id}
	for k, v := range props {
		if k != idField && v != nil {
			values[k] = fmt.Sprint(v)
		}
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.recordKey(m, id), values)
		pipe.ZAdd(ctx, s.idsKey(m), redis.Z{Score: score(id), Member: id})
		return nil
	})
	return id, err
}

// CreateRecord inserts a record and returns it as stored
func (s *Store) CreateRecord(ctx context.Context, m *schema.Model, props adapter.Record) (adapter.Record, error) {
	id, err := s.insert(ctx, m, props)
	if err != nil {
		return nil, wrap("create record", err)
	}
	rec, err := s.load(ctx, m, id)
	return rec, wrap("create record", err)
}

// CreateSome inserts every record. Records written before a failure are removed.
func (s *Store) CreateSome(ctx context.Context, m *schema.Model, records []adapter.Record) (int64, error) {
	var inserted []string
	for _, props := range records {
		id, err := s.insert(ctx, m, props)
		if err != nil {
			errs := []error{err}
			for _, done := range inserted {
				if _, rmErr := s.remove(ctx, m, done); rmErr != nil {
					errs = append(errs, fmt.Errorf("rollback %s: %w", done, rmErr))
				}
			}
			return 0, wrap("create some", errors.Join(errs...))
		}
		inserted = append(inserted, id)
	}
	return int64(len(inserted)), nil
}

// apply writes props onto an existing record
func (s *Store) apply(ctx context.Context, m *schema.Model, id string, props adapter.Record) error {
	set := map[string]any{}
	var del []string
	for k, v := range props {
		if k == m.IDField() {
			continue
		}
		if v == nil {
			del = append(del, k)
		} else {
			set[k] = fmt.Sprint(v)
		}
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(set) > 0 {
			pipe.HSet(ctx, s.recordKey(m, id), set)
		}
		if len(del) > 0 {
			pipe.HDel(ctx, s.recordKey(m, id), del...)
		}
		return nil
	})
	return err
}

// UpdateRecord applies props to the record with the given identifier and
// returns it, or nil when no such record exists
func (s *Store) UpdateRecord(ctx context.Context, m *schema.Model, id any, props adapter.Record) (adapter.Record, error) {
	key := idString(id)
	exists, err := s.client.Exists(ctx, s.recordKey(m, key)).Result()
	if err != nil || exists == 0 {
		return nil, wrap("update record", err)
	}
	if err := s.apply(ctx, m, key, props); err != nil {
		return nil, wrap("update record", err)
	}
	rec, err := s.load(ctx, m, key)
	return rec, wrap("update record", err)
}

func (s *Store) remove(ctx context.Context, m *schema.Model, id string) (int64, error) {
	var del *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, s.recordKey(m, id))
		pipe.ZRem(ctx, s.idsKey(m), id)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return del.Val(), nil
}

// DeleteRecord removes the record with the given identifier
func (s *Store) DeleteRecord(ctx context.Context, m *schema.Model, id any) error {
	_, err := s.DeleteOneByID(ctx, m, id)
	return err
}

// DeleteAll removes every record
func (s *Store) DeleteAll(ctx context.Context, m *schema.Model) (int64, error) {
	return s.deleteMatching(ctx, m, nil, -1)
}

// DeleteSome removes the records matching where
func (s *Store) DeleteSome(ctx context.Context, m *schema.Model, where adapter.Where) (int64, error) {
	return s.deleteMatching(ctx, m, where, -1)
}

// DeleteOne removes the first record matching where
func (s *Store) DeleteOne(ctx context.Context, m *schema.Model, where adapter.Where) (int64, error) {
	return s.deleteMatching(ctx, m, where, 1)
}

// DeleteOneByID removes the record with the given identifier
func (s *Store) DeleteOneByID(ctx context.Context, m *schema.Model, id any) (int64, error) {
	n, err := s.remove(ctx, m, idString(id))
	return n, wrap("delete one by id", err)
}

func (s *Store) deleteMatching(ctx context.Context, m *schema.Model, where adapter.Where, limit int) (int64, error) {
	records, err := s.matching(ctx, m, where)
	if err != nil {
		return 0, wrap("delete", err)
	}
	var n int64
	for _, rec := range records {
		if limit >= 0 && n >= int64(limit) {
			break
		}
		removed, err := s.remove(ctx, m, idString(rec[m.IDField()]))
		if err != nil {
			return n, wrap("delete", err)
		}
		n += removed
	}
	return n, nil
}

// UpdateAll applies props to every record
func (s *Store) UpdateAll(ctx context.Context, m *schema.Model, props adapter.Record) (int64, error) {
	return s.updateMatching(ctx, m, nil, props, -1)
}

// UpdateSome applies props to the records matching where
func (s *Store) UpdateSome(ctx context.Context, m *schema.Model, where adapter.Where, props adapter.Record) (int64, error) {
	return s.updateMatching(ctx, m, where, props, -1)
}

// UpdateOne applies props to the first record matching where
func (s *Store) UpdateOne(ctx context.Context, m *schema.Model, where adapter.Where, props adapter.Record) (int64, error) {
	return s.updateMatching(ctx, m, where, props, 1)
}

// UpdateOneByID applies props to the record with the given identifier
func (s *Store) UpdateOneByID(ctx context.Context, m *schema.Model, id any, props adapter.Record) (int64, error) {
	rec, err := s.UpdateRecord(ctx, m, id, props)
	if err != nil || rec == nil {
		return 0, err
	}
	return 1, nil
}

func (s *Store) updateMatching(ctx context.Context, m *schema.Model, where adapter.Where, props adapter.Record, limit int) (int64, error) {
	records, err := s.matching(ctx, m, where)
	if err != nil {
		return 0, wrap("update", err)
	}
	var n int64
	for _, rec := range records {
		if limit >= 0 && n >= int64(limit) {
			break
		}
		if err := s.apply(ctx, m, idString(rec[m.IDField()]), props); err != nil {
			return n, wrap("update", err)
		}
		n++
	}
	return n, nil
}

// Truncate removes every record and resets the identifier counter
func (s *Store) Truncate(ctx context.Context, m *schema.Model) error {
	ids, err := s.client.ZRange(ctx, s.idsKey(m), 0, -1).Result()
	if err != nil {
		return wrap("truncate", err)
	}

	keys := []string{s.idsKey(m), s.seqKey(m)}
	for _, id := range ids {
		keys = append(keys, s.recordKey(m, id))
	}
	return wrap("truncate", s.client.Del(ctx, keys...).Err())
}

// CountAll returns the number of records
func (s *Store) CountAll(ctx context.Context, m *schema.Model) (int64, error) {
	n, err := s.client.ZCard(ctx, s.idsKey(m)).Result()
	return n, wrap("count all", err)
}

// CountSome returns the number of records matching where
func (s *Store) CountSome(ctx context.Context, m *schema.Model, where adapter.Where) (int64, error) {
	if len(where) == 0 {
		return s.CountAll(ctx, m)
	}
	records, err := s.matching(ctx, m, where)
	if err != nil {
		return 0, wrap("count some", err)
	}
	return int64(len(records)), nil
}

// Destroy closes the client. Calling it again returns the first result.
func (s *Store) Destroy(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.closeErr = s.client.Close()
	})
	return s.closeErr
}
