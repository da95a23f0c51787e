// Package httpapi serves read-only HTTP access to the models of a mapper.
package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/riandyrn/otelchi"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/conduit-lang/datamap/pkg/orm/model"
)

// Models is the set of model classes the router serves
type Models interface {
	Model(name string) (*model.Class, bool)
	Models() []string
}

// Options configures the router
type Options struct {
	Logger      *zap.Logger
	ServiceName string

	// AllowedOrigins enables CORS when non-empty
	AllowedOrigins []string

	// Metrics is mounted at MetricsPath when set
	Metrics     http.Handler
	MetricsPath string
}

// NewRouter creates the HTTP router:
//
//	GET /                   model names
//	GET /{model}            page, limit, sort, fields, filter[attr] parameters
//	GET /{model}/count      filter[attr] parameters
//	GET /{model}/{id}       fields parameter
func NewRouter(models Models, opts Options) chi.Router {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.ServiceName == "" {
		opts.ServiceName = "datamap"
	}
	if opts.MetricsPath == "" {
		opts.MetricsPath = "/metrics"
	}

	r := chi.NewRouter()

	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Options{
			AllowedOrigins: opts.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodHead},
			ExposedHeaders: []string{"X-Total-Count", middleware.RequestIDHeader},
		}).Handler)
	}
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(NewLoggingMiddleware(logger, opts.MetricsPath))
	r.Use(middleware.Recoverer)
	r.Use(otelchi.Middleware(opts.ServiceName, otelchi.WithChiRoutes(r)))

	if opts.Metrics != nil {
		r.Handle(opts.MetricsPath, opts.Metrics)
	}

	h := &handler{models: models, logger: logger}
	r.Get("/", h.index)
	r.Route("/{model}", func(r chi.Router) {
		r.Get("/", h.list)
		r.Get("/count", h.count)
		r.Get("/{id}", h.show)
	})

	return r
}

// NewLoggingMiddleware logs every request except metrics scrapes
func NewLoggingMiddleware(logger *zap.Logger, metricsPath string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			if r.URL.Path == metricsPath || strings.HasPrefix(r.URL.Path, "/health") {
				return
			}

			logger.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
