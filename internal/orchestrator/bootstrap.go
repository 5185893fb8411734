package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/biodoia/goarcanea/internal/providers"
	"github.com/biodoia/goarcanea/internal/providers/factory"
	"github.com/biodoia/goarcanea/internal/registry"
	"github.com/biodoia/goarcanea/internal/router"
	"github.com/biodoia/goarcanea/internal/stats"
	"github.com/biodoia/goarcanea/internal/workflow"
	"github.com/biodoia/goarcanea/pkg/cache"
	"github.com/biodoia/goarcanea/pkg/config"
	"github.com/biodoia/goarcanea/pkg/database"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// App raccoglie i componenti costruiti dalla configurazione
type App struct {
	Config    *config.Config
	Registry  *registry.Registry
	Providers *providers.Registry
	Router    *router.Router
	Engine    *workflow.Engine
	Service   *Service
	DB        *database.DB
	Metrics   *prometheus.Registry

	cache *cache.MultiLayerCache
}

// BootstrapOptions modifica la costruzione dell'App
type BootstrapOptions struct {
	// SkipDatabase non apre il database (comandi che non persistono nulla)
	SkipDatabase bool
}

// Bootstrap valida la configurazione e costruisce tutti i componenti
func Bootstrap(ctx context.Context, cfg *config.Config, opts BootstrapOptions) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	app := &App{
		Config:  cfg,
		Metrics: prometheus.NewRegistry(),
	}
	metrics := stats.New(app.Metrics, stats.DefaultNamespace)

	app.Registry = registry.New(registry.SourceFor(cfg.Registry.Source))
	if _, err := app.Registry.Load(ctx); err != nil {
		return nil, err
	}

	provs, err := factory.Build(cfg.Providers)
	if err != nil {
		return nil, fmt.Errorf("failed to build providers: %w", err)
	}
	app.Providers = provs

	table, err := router.NewTable(cfg.Routing, cfg.Providers, provs)
	if err != nil {
		return nil, err
	}

	routerOpts := []router.Option{router.WithMetrics(metrics)}
	if cfg.Routing.Cache.Enabled {
		app.cache = cache.NewMultiLayerCache(ctx, &cache.Config{
			MemoryMaxEntries: cfg.Routing.Cache.MaxEntries,
			MemoryTTL:        cfg.Routing.Cache.TTL,
			RedisEnabled:     cfg.Routing.Cache.Redis,
			RedisHost:        cfg.Redis.Host,
			RedisPassword:    cfg.Redis.Password,
			RedisDB:          cfg.Redis.DB,
			RedisTTL:         cfg.Routing.Cache.TTL,
			RedisPrefix:      "arcanea:",
		})
		routerOpts = append(routerOpts, router.WithCache(cache.NewGenerationCache(app.cache, cfg.Routing.Cache.TTL)))
	}

	app.Router, err = router.New(table, routerOpts...)
	if err != nil {
		return nil, err
	}

	catalog, err := workflow.LoadCatalog(cfg.Workflows.Catalog)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	app.Engine, err = workflow.NewEngine(app.Router, catalog, app.Registry.Snapshot(),
		workflow.WithMaxParallel(cfg.Workflows.MaxParallel),
		workflow.WithMetrics(metrics),
	)
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	var svcOpts []Option
	if !opts.SkipDatabase {
		db, err := database.New(&cfg.Database)
		if err != nil {
			_ = app.Close()
			return nil, err
		}
		if err := db.AutoMigrate(); err != nil {
			_ = db.Close()
			_ = app.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		app.DB = db
		svcOpts = append(svcOpts, WithStore(db))
		if cfg.Workflows.Persist {
			svcOpts = append(svcOpts, WithRunRecorder(db))
		}
	}

	app.Service = New(app.Registry, app.Router, app.Engine, svcOpts...)

	log.Info().
		Int("agents", app.Registry.Count()).
		Strs("providers", provs.List()).
		Str("default_provider", cfg.Routing.DefaultProvider).
		Int("workflows", len(catalog.Workflows)).
		Bool("persistence", app.DB != nil).
		Msg("Orchestrator ready")

	return app, nil
}

// Close rilascia database e cache
func (a *App) Close() error {
	var errs []error
	if a.cache != nil {
		errs = append(errs, a.cache.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}
