package cli

import (
	"context"

	"github.com/turtacn/biomarker-engine/internal/application/reference"
	"github.com/turtacn/biomarker-engine/internal/application/validation"
	"github.com/turtacn/biomarker-engine/internal/config"
	"github.com/turtacn/biomarker-engine/internal/infrastructure/database/postgres"
	"github.com/turtacn/biomarker-engine/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/biomarker-engine/internal/infrastructure/database/redis"
	"github.com/turtacn/biomarker-engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/biomarker-engine/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/biomarker-engine/internal/infrastructure/storage/minio"
	"github.com/turtacn/biomarker-engine/internal/intelligence/normalizer"
	"github.com/turtacn/biomarker-engine/internal/interfaces/http/handlers"
)

// Runtime holds the dependencies shared by the CLI commands, the API server
// and the worker.  Optional stores are nil when not configured.
type Runtime struct {
	Config    *config.Config
	Logger    logging.Logger
	Collector prometheus.MetricsCollector
	Metrics   *prometheus.AppMetrics
	Service   validation.Service
	Source    reference.Source

	Objects     *minio.Client
	DB          *postgres.Connection
	Overrides   *repositories.OverrideRepository
	Duplicates  *repositories.DuplicateRepository
	Redis       *redis.Client
	SharedCache *redis.OverrideCache

	closers []func() error
}

type runtimeSettings struct {
	requireSpec bool
	skipStores  bool
}

// RuntimeOption customizes NewRuntime.
type RuntimeOption func(*runtimeSettings)

// RequireSpecification makes NewRuntime fail when the specification cannot
// be loaded.  Without it the service starts not ready.
func RequireSpecification() RuntimeOption {
	return func(s *runtimeSettings) { s.requireSpec = true }
}

// WithoutStores skips PostgreSQL and Redis even when configured.
func WithoutStores() RuntimeOption {
	return func(s *runtimeSettings) { s.skipStores = true }
}

// NewRuntime connects the configured stores, loads the specification and
// builds the validation service.  Everything opened is released by Close,
// including on error.
func NewRuntime(ctx context.Context, cfg *config.Config, logger logging.Logger, opts ...RuntimeOption) (*Runtime, error) {
	var s runtimeSettings
	for _, opt := range opts {
		opt(&s)
	}

	rt := &Runtime{Config: cfg, Logger: logging.OrNop(logger)}
	ok := false
	defer func() {
		if !ok {
			_ = rt.Close()
		}
	}()

	if err := rt.initMetrics(); err != nil {
		return nil, err
	}
	if err := rt.initObjects(ctx); err != nil {
		return nil, err
	}
	if !s.skipStores {
		if err := rt.initDatabase(ctx); err != nil {
			return nil, err
		}
		if err := rt.initRedis(); err != nil {
			return nil, err
		}
	}

	var store reference.ObjectStore
	if rt.Objects != nil {
		store = rt.Objects
	}
	src, err := reference.NewSource(cfg.Reference, store)
	if err != nil {
		return nil, err
	}
	rt.Source = src

	spec, err := src.Load(ctx)
	if err != nil {
		if s.requireSpec {
			return nil, err
		}
		rt.Logger.Error("specification unavailable, starting not ready",
			logging.String("source", src.Describe()), logging.Err(err))
		spec = nil
	}

	svcOpts := []validation.Option{validation.WithMetrics(rt.Metrics)}
	if lookup := rt.OverrideLookup(); lookup != nil {
		svcOpts = append(svcOpts, validation.WithOverrides(lookup))
	}
	svc, err := validation.NewService(spec, cfg.Engine, rt.Logger, svcOpts...)
	if err != nil {
		return nil, err
	}
	rt.Service = svc

	ok = true
	return rt, nil
}

func (rt *Runtime) initMetrics() error {
	if !rt.Config.Metrics.Enabled {
		rt.Collector = prometheus.NewNoopCollector()
		rt.Metrics = prometheus.NewNoopAppMetrics()
		return nil
	}
	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            rt.Config.Metrics.Namespace,
		EnableProcessMetrics: true,
		EnableGoMetrics:      true,
	}, rt.Logger)
	if err != nil {
		return err
	}
	rt.Collector = collector
	rt.Metrics = prometheus.NewAppMetrics(collector)
	return nil
}

func (rt *Runtime) initObjects(ctx context.Context) error {
	if rt.Config.Reference.Source != "minio" {
		return nil
	}
	client, err := minio.NewClient(ctx, rt.Config.MinIO, rt.Logger)
	if err != nil {
		return err
	}
	rt.Objects = client
	return nil
}

func (rt *Runtime) initDatabase(ctx context.Context) error {
	if !rt.Config.Database.Enabled() {
		return nil
	}
	conn, err := postgres.NewConnection(rt.Config.Database, rt.Logger)
	if err != nil {
		return err
	}
	rt.DB = conn
	rt.closers = append(rt.closers, conn.Close)

	if rt.Config.Database.AutoMigrate {
		if err := conn.RunMigrations(ctx); err != nil {
			return err
		}
	}
	rt.Overrides = repositories.NewOverrideRepository(conn, rt.Logger, repositories.WithMetrics(rt.Metrics))
	rt.Duplicates = repositories.NewDuplicateRepository(conn, rt.Logger, repositories.WithMetrics(rt.Metrics))
	return nil
}

func (rt *Runtime) initRedis() error {
	if !rt.Config.Redis.Enabled() {
		return nil
	}
	client, err := redis.NewClient(rt.Config.Redis, rt.Logger)
	if err != nil {
		return err
	}
	rt.Redis = client
	rt.closers = append(rt.closers, client.Close)

	if rt.Overrides != nil {
		rt.SharedCache = redis.NewOverrideCache(client, rt.Overrides, rt.Logger, rt.Metrics)
	}
	return nil
}

// OverrideLookup returns the Redis cache when present, the repository when
// only PostgreSQL is configured, and nil otherwise.
func (rt *Runtime) OverrideLookup() normalizer.OverrideLookup {
	switch {
	case rt.SharedCache != nil:
		return rt.SharedCache
	case rt.Overrides != nil:
		return rt.Overrides
	default:
		return nil
	}
}

// SharedInvalidator returns the shared cache as a handlers.SharedCacheInvalidator,
// or nil when there is none.
func (rt *Runtime) SharedInvalidator() handlers.SharedCacheInvalidator {
	if rt.SharedCache == nil {
		return nil
	}
	return rt.SharedCache
}

// HealthCheckers returns a checker per connected store.
func (rt *Runtime) HealthCheckers() []handlers.HealthChecker {
	var out []handlers.HealthChecker
	if rt.DB != nil {
		out = append(out, handlers.CheckFunc{ComponentName: "postgres", Fn: rt.DB.HealthCheck})
	}
	if rt.Redis != nil {
		out = append(out, handlers.CheckFunc{ComponentName: "redis", Fn: rt.Redis.Ping})
	}
	if rt.Objects != nil {
		key := rt.Config.Reference.Object
		out = append(out, handlers.CheckFunc{ComponentName: "minio", Fn: func(ctx context.Context) error {
			_, err := rt.Objects.Stat(ctx, key)
			return err
		}})
	}
	return out
}

// StartWatching reloads the service whenever the specification changes.
// It is a no-op unless reference.watch is set.  The watcher stops with ctx.
func (rt *Runtime) StartWatching(ctx context.Context) {
	if !rt.Config.Reference.Watch {
		return
	}
	var run func(context.Context) error
	switch src := rt.Source.(type) {
	case reference.FileSource:
		run = reference.NewFileWatcher(src, rt.Service, rt.Logger).Run
	case reference.ObjectSource:
		run = reference.NewObjectPoller(src, rt.Service, rt.Config.Reference.PollInterval, rt.Logger).Run
	default:
		return
	}
	go func() {
		if err := run(ctx); err != nil && ctx.Err() == nil {
			rt.Logger.Error("specification watcher stopped", logging.Err(err))
		}
	}()
}

// Close releases every opened store in reverse order.
func (rt *Runtime) Close() error {
	var first error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	rt.closers = nil
	return first
}
