package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/likebounty/app/handlers"
	"github.com/amirphl/likebounty/app/middleware"
	"github.com/amirphl/likebounty/app/router"
	"github.com/amirphl/likebounty/app/scheduler"
	"github.com/amirphl/likebounty/app/services"
	businessflow "github.com/amirphl/likebounty/business_flow"
	"github.com/amirphl/likebounty/config"
	"github.com/amirphl/likebounty/repository"
	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Application represents the main application structure
type Application struct {
	router    router.Router
	registry  *businessflow.Registry
	db        *gorm.DB
	cache     *redis.Client
	logger    *zap.Logger
	stopFuncs []func()
}

// stopWorkers stops background workers in reverse start order
func (a *Application) stopWorkers() {
	for i := len(a.stopFuncs) - 1; i >= 0; i-- {
		a.stopFuncs[i]()
	}
	a.stopFuncs = nil
}

// Close stops workers and releases connections
func (a *Application) Close() {
	a.stopWorkers()
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Warn("Failed to close redis client", zap.Error(err))
		}
	}
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}

// initializeDatabase opens the configured database with connection pooling
func initializeDatabase(cfg config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	slowThreshold := time.Duration(0)
	if cfg.SlowQueryLog {
		slowThreshold = cfg.SlowQueryTime
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.New(zap.NewStdLog(log.Named("gorm")), gormlogger.Config{
			SlowThreshold:             slowThreshold,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB for connection pooling configuration
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if cfg.Driver == "sqlite" {
		// SQLite serializes writers; one connection avoids SQLITE_BUSY
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info("Database connection established",
		zap.String("driver", cfg.Driver),
		zap.Int("max_open_conns", cfg.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.MaxIdleConns),
	)
	return db, nil
}

// initializeCache initializes the Redis client and verifies connectivity
func initializeCache(cfg config.CacheConfig, log *zap.Logger) (*redis.Client, error) {
	if !cfg.Enabled || cfg.Provider != "redis" {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	// Override DB if provided in config
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Info("Redis connection established", zap.String("addr", opt.Addr), zap.Int("db", opt.DB))
	return rc, nil
}

// startCacheHealthMonitor periodically pings Redis to surface connectivity
// problems. The returned function stops the monitor and waits for it.
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration, log *zap.Logger) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(monitorCtx, 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil && !errors.Is(err, context.Canceled) {
					log.Warn("Redis healthcheck failed", zap.Error(err))
				}
				c()
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

// buildEventSink fans registry events out to the configured destinations
func buildEventSink(cfg *config.ProductionConfig, reg prometheus.Registerer, cache *redis.Client, log *zap.Logger) (businessflow.EventSink, error) {
	var sinks businessflow.MultiEventSink
	if cfg.Events.Log {
		sinks = append(sinks, services.NewLogEventSink(log))
	}
	if cfg.Metrics.Enabled {
		metricsSink, err := services.NewMetricsEventSink(reg)
		if err != nil {
			return nil, fmt.Errorf("failed to register event metrics: %w", err)
		}
		sinks = append(sinks, metricsSink)
	}
	if cache != nil && cfg.Events.RedisChannel != "" {
		sinks = append(sinks, services.NewRedisEventSink(cache, cfg.Events.RedisChannel, log))
	}
	return sinks, nil
}

func initializeApplication(ctx context.Context, cfg *config.ProductionConfig, log *zap.Logger) (*Application, error) {
	db, err := initializeDatabase(cfg.Database, log)
	if err != nil {
		return nil, err
	}
	app := &Application{db: db, logger: log}

	fail := func(err error) (*Application, error) {
		app.Close()
		return nil, err
	}

	if cfg.Database.Driver == "sqlite" {
		// embedded deployments have no separate migrate step
		if err := repository.Migrate(db); err != nil {
			return fail(fmt.Errorf("failed to migrate database: %w", err))
		}
	}

	cache, err := initializeCache(cfg.Cache, log)
	if err != nil {
		return fail(err)
	}
	if cache != nil {
		app.cache = cache
		app.stopFuncs = append(app.stopFuncs, startCacheHealthMonitor(ctx, cache, cfg.Cache.HealthInterval, log))
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	events, err := buildEventSink(cfg, promRegistry, cache, log)
	if err != nil {
		return fail(err)
	}

	// Initialize repositories and business flows
	walletFlow := businessflow.NewWalletFlow(
		repository.NewWalletRepository(db),
		repository.NewTransactionRepository(db),
		db,
	)
	journal := businessflow.NewGormJournal(db, cfg.Events.Persist)

	registry := businessflow.NewRegistry(businessflow.RegistryConfig{
		Owner:                  cfg.Registry.Owner,
		Authority:              cfg.Registry.Authority,
		MaxApplicationDuration: cfg.Registry.MaxApplicationDuration,
		MinActivityDuration:    cfg.Registry.MinActivityDuration,
		FallbackGracePeriod:    cfg.Registry.FallbackGracePeriod,
	}, businessflow.RegistryDeps{
		Journal:    journal,
		Events:     events,
		Collector:  walletFlow,
		Transferer: walletFlow,
		Policy:     businessflow.NewUniformSelectionPolicy(businessflow.CryptoRandomSource{}),
	})

	state, err := journal.Load(ctx)
	if err != nil {
		return fail(fmt.Errorf("failed to load registry state: %w", err))
	}
	if err := registry.Restore(state); err != nil {
		return fail(fmt.Errorf("failed to restore registry state: %w", err))
	}
	app.registry = registry
	log.Info("Registry restored",
		zap.Int("campaigns", len(registry.ListCampaigns())),
		zap.Uint64("next_campaign_id", registry.NextCampaignID()),
		zap.Bool("paused", registry.Paused()),
	)

	tokenService, err := services.NewTokenService(cfg.JWT.AccessTokenTTL, cfg.JWT.Issuer, cfg.JWT.Audience, cfg.JWT.SecretKey)
	if err != nil {
		return fail(fmt.Errorf("failed to initialize token service: %w", err))
	}

	var httpMetrics *middleware.HTTPMetrics
	if cfg.Metrics.Enabled {
		httpMetrics, err = middleware.NewHTTPMetrics(promRegistry)
		if err != nil {
			return fail(fmt.Errorf("failed to register http metrics: %w", err))
		}
	}

	app.router = router.NewFiberRouter(router.Handlers{
		Campaign: handlers.NewCampaignHandler(registry, log),
		Registry: handlers.NewRegistryHandler(registry, log),
		Wallet:   handlers.NewWalletHandler(walletFlow, log),
		Health:   handlers.NewHealthHandler(db, cfg.Deployment.Version),
	}, router.Options{
		Server:          cfg.Server,
		Security:        cfg.Security,
		Metrics:         cfg.Metrics,
		EnableAccessLog: cfg.Logging.EnableAccessLog,
		Auth:            middleware.NewAuthMiddleware(tokenService),
		HTTPMetrics:     httpMetrics,
		Gatherer:        promRegistry,
		Logger:          log,
	})

	return app, nil
}

// startFallbackScheduler schedules fallback selection when it is enabled
func (a *Application) startFallbackScheduler(ctx context.Context, cfg config.RegistryConfig) error {
	if !cfg.FallbackEnabled {
		a.logger.Info("Fallback selection disabled")
		return nil
	}
	fallback, err := scheduler.NewFallbackScheduler(a.registry, cfg.FallbackCron, a.logger)
	if err != nil {
		return err
	}
	stop, err := fallback.Start(ctx)
	if err != nil {
		return err
	}
	a.stopFuncs = append(a.stopFuncs, stop)
	return nil
}
