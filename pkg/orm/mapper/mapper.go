// Package mapper assembles a set of model definitions with their type
// handlers, storage adapters and serializers, and owns the adapters'
// lifecycle.
package mapper

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/conduit-lang/datamap/pkg/orm/adapter"
	"github.com/conduit-lang/datamap/pkg/orm/adapter/instrumented"
	"github.com/conduit-lang/datamap/pkg/orm/adapter/memory"
	"github.com/conduit-lang/datamap/pkg/orm/adapter/redisstore"
	"github.com/conduit-lang/datamap/pkg/orm/adapter/sqlstore"
	"github.com/conduit-lang/datamap/pkg/orm/model"
	"github.com/conduit-lang/datamap/pkg/orm/schema"
	"github.com/conduit-lang/datamap/pkg/orm/serializer"
	"github.com/conduit-lang/datamap/pkg/orm/types"
)

// ErrUnknownDriver is returned by OpenDriver for an unrecognized driver name
var ErrUnknownDriver = errors.New("unknown storage driver")

// drivers maps every accepted driver name to the factory that serves it
var drivers = map[string]adapter.Factory{
	"":         memory.Factory,
	"memory":   memory.Factory,
	"sqlite3":  sqlstore.Factory,
	"sqlite":   sqlstore.Factory,
	"postgres": sqlstore.Factory,
	"pgx":      sqlstore.Factory,
	"pq":       sqlstore.Factory,
	"redis":    redisstore.Factory,
}

// Drivers returns the accepted driver names in sorted order
func Drivers() []string {
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		if name != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// OpenDriver is the default adapter factory. It dispatches on cfg.Driver;
// an empty driver selects the in-memory store.
func OpenDriver(ctx context.Context, cfg adapter.Config) (adapter.Adapter, error) {
	factory, ok := drivers[cfg.Driver]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
	return factory(ctx, cfg)
}

// Config is the input of New. Every map is merged over the built-in
// defaults, so a "default" adapter, the built-in types and the default and
// jsonapi serializers are always present.
type Config struct {
	Models      map[string]*schema.Definition
	Types       map[string]types.Handler
	Adapters    map[string]adapter.Factory
	Serializers map[string]serializer.Serializer
	Storage     map[string]adapter.Config
	Logger      *zap.Logger

	// Registerer receives the adapter metrics; nil disables metrics
	Registerer prometheus.Registerer
}

// Mapper is an assembled set of models
type Mapper struct {
	logger   *zap.Logger
	registry *schema.Registry
	models   map[string]*model.Class
	adapters map[string]adapter.Adapter

	destroyOnce sync.Once
	destroyErr  error
}

// New builds one adapter per adapter entry and sets up every model. If
// any step fails the adapters already built are destroyed.
func New(ctx context.Context, cfg Config) (*Mapper, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	handlers := types.Defaults()
	for name, h := range cfg.Types {
		handlers[name] = h
	}

	factories := map[string]adapter.Factory{model.DefaultAdapter: OpenDriver}
	for key, f := range cfg.Adapters {
		factories[key] = f
	}

	serializers := serializer.Defaults()
	for name, s := range cfg.Serializers {
		serializers[name] = s
	}

	var metrics *instrumented.Metrics
	if cfg.Registerer != nil {
		metrics = instrumented.NewMetrics(cfg.Registerer)
	}

	m := &Mapper{
		logger:   logger,
		registry: schema.NewRegistry(),
		models:   make(map[string]*model.Class, len(cfg.Models)),
		adapters: make(map[string]adapter.Adapter, len(factories)),
	}

	keys := make([]string, 0, len(factories))
	for key := range factories {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		storage, ok := cfg.Storage[key]
		if !ok {
			storage = cfg.Storage[model.DefaultAdapter]
		}

		inner, err := factories[key](ctx, storage)
		if err != nil {
			return nil, m.abort(ctx, fmt.Errorf("adapter %s: %w", key, err))
		}
		m.adapters[key] = instrumented.Wrap(inner, key, instrumented.Options{
			Logger:  logger.Named("adapter").With(zap.String("adapter", key)),
			Metrics: metrics,
		})
		logger.Debug("adapter ready", zap.String("adapter", key), zap.String("driver", storage.Driver))
	}

	for key, def := range cfg.Models {
		if def == nil {
			return nil, m.abort(ctx, &schema.ConfigurationError{Model: key, Message: "nil definition"})
		}
		if def.Name() != key {
			return nil, m.abort(ctx, &schema.ConfigurationError{
				Model:   key,
				Message: fmt.Sprintf("registered as %q but named %q", key, def.Name()),
			})
		}
		if err := m.registry.Register(def); err != nil {
			return nil, m.abort(ctx, err)
		}

		class := model.NewClass(def)
		if err := class.Setup(handlers, m.adapters, serializers); err != nil {
			return nil, m.abort(ctx, err)
		}
		m.models[key] = class
	}

	logger.Info("mapper ready",
		zap.Strings("models", m.Models()),
		zap.Strings("adapters", keys),
	)
	return m, nil
}

// abort destroys the adapters built so far and returns cause joined with
// any teardown failure
func (m *Mapper) abort(ctx context.Context, cause error) error {
	return errors.Join(cause, m.Destroy(ctx))
}

// Model returns the set-up class registered under name
func (m *Mapper) Model(name string) (*model.Class, bool) {
	c, ok := m.models[name]
	return c, ok
}

// Models returns the registered model names in sorted order
func (m *Mapper) Models() []string {
	return m.registry.List()
}

// Adapter returns the adapter built for key
func (m *Mapper) Adapter(key string) (adapter.Adapter, bool) {
	a, ok := m.adapters[key]
	return a, ok
}

// Destroy tears down every adapter concurrently and returns once all of
// them have finished. Failures are joined. Later calls return the result
// of the first.
func (m *Mapper) Destroy(ctx context.Context) error {
	m.destroyOnce.Do(func() {
		keys := make([]string, 0, len(m.adapters))
		for key := range m.adapters {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		errs := make([]error, len(keys))
		var g errgroup.Group
		for i, key := range keys {
			i, key := i, key
			a := m.adapters[key]
			g.Go(func() error {
				if err := a.Destroy(ctx); err != nil {
					errs[i] = fmt.Errorf("adapter %s: %w", key, err)
				}
				return errs[i]
			})
		}
		_ = g.Wait()

		m.destroyErr = errors.Join(errs...)
		if m.destroyErr != nil {
			m.logger.Warn("mapper teardown failed", zap.Error(m.destroyErr))
		} else {
			m.logger.Debug("mapper torn down", zap.Int("adapters", len(keys)))
		}
	})
	return m.destroyErr
}
