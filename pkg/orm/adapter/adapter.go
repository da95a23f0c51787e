// Package adapter defines the storage contract models delegate persistence
// to, together with the pagination, sorting and projection policies every
// store follows.
package adapter

import (
	"context"
	"errors"
	"fmt"

	"github.com/conduit-lang/datamap/pkg/orm/schema"
)

// ErrUnsupported is returned by stores that cannot perform an operation,
// such as raw SQL against a non-relational store.
var ErrUnsupported = errors.New("operation not supported by adapter")

// Record is a row keyed by attribute name
type Record map[string]any

// Clone returns a shallow copy of the record
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Where is an equality filter keyed by attribute name. All entries must match.
type Where map[string]any

// Keys returns the attribute names referenced by the filter
func (w Where) Keys() []string {
	keys := make([]string, 0, len(w))
	for k := range w {
		keys = append(keys, k)
	}
	return keys
}

// SingleOptions shape single-record reads
type SingleOptions struct {
	Fields  []string
	Include []string
}

// MultiOptions shape multi-record reads
type MultiOptions struct {
	Fields  []string
	Sort    string
	Limit   int
	Page    int
	Include []string
}

// Adapter is implemented by storage backends. Records returned by reads are
// raw storage values keyed by attribute name; a read that matches nothing
// returns a nil Record and a nil error.
type Adapter interface {
	One(ctx context.Context, m *schema.Model, where Where, opts *SingleOptions) (Record, error)
	OneByID(ctx context.Context, m *schema.Model, id any, opts *SingleOptions) (Record, error)
	OneBySQL(ctx context.Context, m *schema.Model, query string, params []any, opts *SingleOptions) (Record, error)

	Some(ctx context.Context, m *schema.Model, where Where, opts *MultiOptions) ([]Record, error)
	SomeBySQL(ctx context.Context, m *schema.Model, query string, params []any, opts *MultiOptions) ([]Record, error)
	All(ctx context.Context, m *schema.Model, opts *MultiOptions) ([]Record, error)

	CreateRecord(ctx context.Context, m *schema.Model, props Record) (Record, error)
	CreateSome(ctx context.Context, m *schema.Model, records []Record) (int64, error)
	UpdateRecord(ctx context.Context, m *schema.Model, id any, props Record) (Record, error)
	DeleteRecord(ctx context.Context, m *schema.Model, id any) error

	DeleteAll(ctx context.Context, m *schema.Model) (int64, error)
	DeleteSome(ctx context.Context, m *schema.Model, where Where) (int64, error)
	DeleteOne(ctx context.Context, m *schema.Model, where Where) (int64, error)
	DeleteOneByID(ctx context.Context, m *schema.Model, id any) (int64, error)

	UpdateAll(ctx context.Context, m *schema.Model, props Record) (int64, error)
	UpdateSome(ctx context.Context, m *schema.Model, where Where, props Record) (int64, error)
	UpdateOne(ctx context.Context, m *schema.Model, where Where, props Record) (int64, error)
	UpdateOneByID(ctx context.Context, m *schema.Model, id any, props Record) (int64, error)

	Truncate(ctx context.Context, m *schema.Model) error
	CountAll(ctx context.Context, m *schema.Model) (int64, error)
	CountSome(ctx context.Context, m *schema.Model, where Where) (int64, error)

	// Destroy releases the adapter's resources. It is idempotent.
	Destroy(ctx context.Context) error
}

// Factory builds an adapter from its storage configuration
type Factory func(ctx context.Context, cfg Config) (Adapter, error)

// Config is the storage configuration handed to a Factory
type Config struct {
	Driver   string `mapstructure:"driver"`
	DSN      string `mapstructure:"dsn"`
	Database string `mapstructure:"database"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Addr     string `mapstructure:"addr"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// Redacted returns a copy of the configuration safe to print
func (c Config) Redacted() Config {
	if c.Password != "" {
		c.Password = "********"
	}
	return c
}

// String implements fmt.Stringer without exposing the password
func (c Config) String() string {
	r := c.Redacted()
	return fmt.Sprintf("{driver:%s database:%s host:%s port:%d user:%s password:%s addr:%s db:%d prefix:%s}",
		r.Driver, r.Database, r.Host, r.Port, r.User, r.Password, r.Addr, r.DB, r.Prefix)
}
