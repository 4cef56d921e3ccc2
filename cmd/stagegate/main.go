// Package main is the entry point for the stagegate workflow core server.
// It wires all dependencies together and starts the HTTP server.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/brightpath/stagegate/internal/audit"
	"github.com/brightpath/stagegate/internal/catalog"
	"github.com/brightpath/stagegate/internal/config"
	"github.com/brightpath/stagegate/internal/document"
	"github.com/brightpath/stagegate/internal/observability"
	"github.com/brightpath/stagegate/internal/progression"
	"github.com/brightpath/stagegate/internal/realtime"
	"github.com/brightpath/stagegate/internal/reminder"
	"github.com/brightpath/stagegate/internal/transport"
)

// Build-time variables set via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=abc1234"
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return 1
	}

	observability.Version = version
	observability.Commit = commit

	logger, err := observability.NewLogger(cfg.Observability)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		return 1
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	tracingShutdown, err := observability.InitTracing(ctx, cfg.Observability.Tracing, "stagegate", version)
	if err != nil {
		logger.Error("tracing initialization failed", zap.Error(err))
		return 1
	}

	metrics := observability.InitMetrics(prometheus.DefaultRegisterer)

	// Persistence for progress, documents, and the audit trail.
	stores, err := buildStores(ctx, cfg.Store, logger)
	if err != nil {
		logger.Error("store initialization failed", zap.Error(err))
		return 1
	}

	cat, catalogLoaded, err := buildCatalog(cfg.Catalog, stores.pool, logger)
	if err != nil {
		logger.Error("catalog initialization failed", zap.Error(err))
		return 1
	}

	recorder := audit.NewRecorder(stores.audit, logger, metrics)
	hub := realtime.NewHub(cfg.Realtime.SendBufferSize, logger, metrics)
	engine := progression.NewEngine(cat, stores.progress, recorder, hub, metrics, logger)
	docService := document.NewService(stores.document, nil, nil, engine, recorder, hub, metrics, logger)

	readiness := observability.ReadinessChecks{
		CatalogLoaded: catalogLoaded,
	}
	if hc, ok := stores.progress.(observability.HealthChecker); ok {
		readiness.ProgressStore = hc
	}
	if hc, ok := stores.document.(observability.HealthChecker); ok {
		readiness.DocumentStore = hc
	}
	if hc, ok := stores.audit.(observability.HealthChecker); ok {
		readiness.AuditStore = hc
	}

	router := transport.NewRouter(transport.Dependencies{
		Config:    cfg,
		Logger:    logger,
		Metrics:   metrics,
		Engine:    engine,
		Documents: docService,
		AuditLog:  stores.audit,
		Hub:       hub,
		Readiness: readiness,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	bgCtx, bgCancel := context.WithCancel(ctx)
	defer bgCancel()

	if cfg.Reminder.Enabled {
		scheduler := reminder.NewScheduler(
			stores.progress, engine,
			reminder.LogNotifier{Logger: logger},
			cfg.Reminder, metrics, logger,
		)
		go scheduler.Run(bgCtx)
	}

	logger.Info("server started",
		zap.Int("port", cfg.Server.Port),
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("catalog_source", cfg.Catalog.Source),
		zap.String("store_driver", cfg.Store.Driver),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown initiated")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		return 1
	}

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout == 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	bgCancel()

	if stores.close != nil {
		stores.close()
	}
	if err := tracingShutdown(shutdownCtx); err != nil {
		logger.Error("tracing shutdown error", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return 0
}

// stores bundles the persistence trio. The pool is non-nil only with the
// postgres driver; the catalog can share it.
type stores struct {
	progress progression.Store
	document document.Store
	audit    audit.Store
	pool     *pgxpool.Pool
	close    func()
}

// buildStores creates the persistence backends based on config. The postgres
// driver shares one connection pool across all stores.
func buildStores(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (stores, error) {
	switch cfg.Driver {
	case "memory":
		logger.Info("using in-memory stores")
		return stores{
			progress: progression.NewMemoryStore(),
			document: document.NewMemoryStore(),
			audit:    audit.NewMemoryStore(),
		}, nil

	case "postgres":
		dsn := os.Getenv(cfg.DSNEnv)
		if dsn == "" {
			return stores{}, fmt.Errorf("store: %s environment variable not set", cfg.DSNEnv)
		}

		poolCfg, err := pgxpool.ParseConfig(dsn)
		if err != nil {
			return stores{}, fmt.Errorf("store: parse DSN: %w", err)
		}
		poolCfg.MaxConns = int32(cfg.MaxOpenConns)
		poolCfg.MinConns = int32(cfg.MaxIdleConns)
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime

		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return stores{}, fmt.Errorf("store: connect: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return stores{}, fmt.Errorf("store: ping: %w", err)
		}

		return stores{
			progress: progression.NewPgStore(pool),
			document: document.NewPgStore(pool),
			audit:    audit.NewPgStore(pool),
			pool:     pool,
			close:    pool.Close,
		}, nil

	default:
		return stores{}, fmt.Errorf("unsupported store driver: %q", cfg.Driver)
	}
}

// buildCatalog creates the workflow definition source. The files source loads
// and validates YAML definitions up front; the postgres source reads
// definitions from the shared store pool on demand.
func buildCatalog(cfg config.CatalogConfig, pool *pgxpool.Pool, logger *zap.Logger) (catalog.Store, func() bool, error) {
	switch cfg.Source {
	case "files":
		loader := catalog.NewLoader()
		workflows, err := loader.LoadAll(cfg.Directories)
		if err != nil {
			return nil, nil, fmt.Errorf("catalog: %w", err)
		}
		validator := catalog.NewValidator()
		if verrs := validator.Validate(workflows); len(verrs) > 0 {
			for _, ve := range verrs {
				logger.Error("catalog validation error", zap.String("error", ve.Error()))
			}
			return nil, nil, fmt.Errorf("catalog: %d validation errors", len(verrs))
		}
		registry := catalog.NewRegistry(workflows)
		logger.Info("catalog loaded", zap.Int("workflows", registry.Len()))
		return registry, func() bool { return registry.Len() > 0 }, nil

	case "postgres":
		if pool == nil {
			return nil, nil, fmt.Errorf("catalog: postgres source requires the postgres store driver")
		}
		// Definition presence is checked per request; readiness only needs
		// connectivity, which the store checks already cover.
		return catalog.NewPgStore(pool), func() bool { return true }, nil

	default:
		return nil, nil, fmt.Errorf("unsupported catalog source: %q", cfg.Source)
	}
}
