package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"task-tracker/internal/cache"
	"task-tracker/internal/chat"
	"task-tracker/internal/config"
	"task-tracker/internal/database"
	"task-tracker/internal/logger"
	"task-tracker/internal/monitoring"
	"task-tracker/internal/router"
	"task-tracker/internal/services"

	gormlogger "gorm.io/gorm/logger"
)

var version = "dev"

type application struct {
	cfg    *config.Config
	pool   *database.DatabasePool
	cache  *cache.MultiLevelCache
	warmer *cache.CacheWarmer
	server *http.Server
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("failed to load config", "error", err)
	}
	logger.Init(cfg.Log.Level, cfg.Log.JSON)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApplication(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to start", "error", err)
	}
	defer app.close()

	if err := app.run(ctx); err != nil {
		logger.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func newApplication(ctx context.Context, cfg *config.Config) (*application, error) {
	pool, err := database.NewDatabasePool(&database.PoolConfig{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.GetDatabaseDSN(),
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		LogLevel:        gormLogLevel(cfg.Log.Level),
	})
	if err != nil {
		return nil, err
	}

	if err := pool.Migrate(ctx); err != nil {
		_ = pool.Close()
		return nil, err
	}

	app := &application{cfg: cfg, pool: pool}

	tokens := services.NewJWTTokenService(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL)
	health := monitoring.NewHealthChecker(version)
	health.Register("database", pool.Health)

	deps := router.Deps{
		Tasks:  services.NewTaskService(pool.DB),
		Users:  services.NewUserService(pool.DB, cfg.Auth.BCryptCost),
		Tokens: tokens,
		Chat: chat.NewClient(chat.Config{
			APIKey:  cfg.Chat.APIKey,
			Model:   cfg.Chat.Model,
			BaseURL: cfg.Chat.BaseURL,
			Timeout: cfg.Chat.Timeout,
		}),
		Metrics: monitoring.NewMetrics(),
		Health:  health,
	}

	if cfg.Cache.Enabled {
		app.cache = newTaskCache(ctx, cfg)
		app.warmer = cache.NewCacheWarmer(app.cache, nil)
		app.warmer.Start(ctx)

		cached := services.NewCachedTaskService(deps.Tasks, app.cache, cfg.Cache.TaskTTL, cfg.Cache.ListTTL).
			WithWarmer(app.warmer)
		deps.Tasks = cached
		deps.Warmer = cached
		health.RegisterOptional("cache", app.cache.Health)
	}

	if cfg.Chat.APIKey == "" {
		logger.Warn("GEMINI_API_KEY is not set; chat replies will report an upstream error")
	}

	app.server = &http.Server{
		Addr:         cfg.GetServerAddr(),
		Handler:      router.New(cfg.Server, deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return app, nil
}

// newTaskCache returns the Redis-backed task cache. An unreachable Redis is
// only logged: falling back to a per-process cache would let instances serve
// each other's invalidated entries, so reads go to the database until the
// breaker lets Redis back in.
func newTaskCache(ctx context.Context, cfg *config.Config) *cache.MultiLevelCache {
	redisCache := cache.NewRedisCache(&cache.CacheConfig{
		Addr:         cfg.GetRedisAddr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		MaxRetries:   cfg.Redis.MaxRetries,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
		KeyPrefix:    cfg.Redis.KeyPrefix,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Redis.DialTimeout)
	defer cancel()
	if err := redisCache.Health(pingCtx); err != nil {
		logger.Warn("redis unavailable at startup, serving tasks from the database", "addr", cfg.GetRedisAddr(), "error", err)
	}
	if cfg.Cache.LocalTTL > 0 {
		logger.Warn("in-process cache enabled in front of redis; run a single instance", "local_ttl", cfg.Cache.LocalTTL)
	}

	return cache.NewMultiLevelCache(redisCache, &cache.MultiLevelConfig{LocalTTL: cfg.Cache.LocalTTL})
}

func (a *application) run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", a.server.Addr, "environment", a.cfg.Server.Environment, "version", version)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("server exited")
	return nil
}

func (a *application) close() {
	if a.warmer != nil {
		a.warmer.Stop()
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			logger.Warn("failed to close cache", "error", err)
		}
	}
	if err := a.pool.Close(); err != nil {
		logger.Warn("failed to close database", "error", err)
	}
}

func gormLogLevel(level string) gormlogger.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return gormlogger.Info
	case "error":
		return gormlogger.Error
	case "silent":
		return gormlogger.Silent
	default:
		return gormlogger.Warn
	}
}
