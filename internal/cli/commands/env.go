package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/conduit-lang/datamap/internal/catalog"
	"github.com/conduit-lang/datamap/internal/cli/ui"
	"github.com/conduit-lang/datamap/internal/config"
	"github.com/conduit-lang/datamap/internal/logging"
	"github.com/conduit-lang/datamap/pkg/orm/adapter"
	"github.com/conduit-lang/datamap/pkg/orm/adapter/sqlstore"
	"github.com/conduit-lang/datamap/pkg/orm/mapper"
	"github.com/conduit-lang/datamap/pkg/orm/model"
)

// env is everything a command needs once configuration is loaded
type env struct {
	cfg      *config.Config
	logger   *zap.Logger
	mapper   *mapper.Mapper
	registry *prometheus.Registry
}

// unknownModelError is returned for a model name the catalog does not define
type unknownModelError struct {
	Name        string
	Suggestions []string
}

func (e *unknownModelError) Error() string {
	return fmt.Sprintf("model %q is not defined", e.Name)
}

// run loads configuration, sets up the catalog models, calls fn and tears
// the mapper down again
func (o *rootOptions) run(ctx context.Context, fn func(e *env) error) error {
	e, err := o.open(ctx)
	if err != nil {
		return err
	}

	runErr := fn(e)
	closeErr := e.mapper.Destroy(ctx)
	_ = e.logger.Sync()
	return errors.Join(runErr, closeErr)
}

func (o *rootOptions) open(ctx context.Context) (*env, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	e := &env{cfg: cfg, logger: logger}
	mcfg := mapper.Config{
		Models:   catalog.Models(),
		Types:    catalog.Types(),
		Adapters: make(map[string]adapter.Factory, len(cfg.Storage)),
		Storage:  cfg.Storage,
		Logger:   logger,
	}
	// every storage entry gets its own adapter; models pick theirs by name
	for key := range cfg.Storage {
		mcfg.Adapters[key] = mapper.OpenDriver
	}
	if cfg.Metrics.Enabled {
		e.registry = prometheus.NewRegistry()
		mcfg.Registerer = e.registry
	}

	e.mapper, err = mapper.New(ctx, mcfg)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return e, nil
}

// model looks up a set-up model by name
func (e *env) model(name string) (*model.Class, error) {
	class, ok := e.mapper.Model(name)
	if !ok {
		return nil, &unknownModelError{Name: name, Suggestions: ui.Suggest(name, e.mapper.Models(), 3)}
	}
	return class, nil
}

// sqlStore returns the SQL store behind a model, or nil when the model is
// bound to another kind of storage
func sqlStore(class *model.Class) *sqlstore.Store {
	a := class.Adapter()
	for a != nil {
		if s, ok := a.(*sqlstore.Store); ok {
			return s
		}
		u, ok := a.(interface{ Unwrap() adapter.Adapter })
		if !ok {
			return nil
		}
		a = u.Unwrap()
	}
	return nil
}
