package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/datamap/internal/catalog"
	"github.com/conduit-lang/datamap/internal/cli/ui"
	"github.com/conduit-lang/datamap/internal/httpapi"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	var (
		addr string
		seed bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the catalog models over HTTP",
		Long: `Start a read-only HTTP server for the catalog models.

Routes:
  GET /                 model names
  GET /{model}          page, limit, sort, fields and filter[attr] parameters
  GET /{model}/count    filter[attr] parameters
  GET /{model}/{id}     fields parameter

Responses use the default serializer unless the request sends
"Accept: application/vnd.api+json" or ?serializer=jsonapi.`,
		Example: `  # Serve seeded in-memory cats on port 3000
  datamap serve --seed --addr :3000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return opts.run(ctx, func(e *env) error {
				if addr != "" {
					e.cfg.HTTP.Addr = addr
				}
				if seed {
					if err := seedCats(ctx, e); err != nil {
						return err
					}
				}

				routerOpts := httpapi.Options{
					Logger:         e.logger.Named("http"),
					AllowedOrigins: e.cfg.HTTP.AllowedOrigins,
				}
				if e.registry != nil {
					routerOpts.Metrics = promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
					routerOpts.MetricsPath = e.cfg.Metrics.Path
				}

				srv := httpapi.NewServer(e.cfg.HTTP.Addr, httpapi.NewRouter(e.mapper, routerOpts))
				ui.WriteInfo(cmd.OutOrStdout(), fmt.Sprintf("serving %v on %s", e.mapper.Models(), e.cfg.HTTP.Addr), opts.noColor)
				return httpapi.ListenAndServe(ctx, srv, e.logger)
			})
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides http.addr)")
	cmd.Flags().BoolVar(&seed, "seed", false, "Seed the fixture cats before serving")
	return cmd
}

func seedCats(ctx context.Context, e *env) error {
	cats, err := e.model(catalog.Cat.Name())
	if err != nil {
		return err
	}
	if store := sqlStore(cats); store != nil {
		if err := catalog.Migrate(ctx, store.DB(), store.Dialect()); err != nil {
			return err
		}
	}
	n, err := catalog.Seed(ctx, cats)
	if err != nil {
		return err
	}
	e.logger.Info("seeded fixtures", zap.String("model", cats.Name()), zap.Int64("count", n))
	return nil
}
