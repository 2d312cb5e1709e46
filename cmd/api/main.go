package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-catalog/internal/api/handler"
	"github.com/sanosuguru/go-event-catalog/internal/api/router"
	"github.com/sanosuguru/go-event-catalog/internal/application"
	"github.com/sanosuguru/go-event-catalog/internal/config"
	"github.com/sanosuguru/go-event-catalog/internal/domain/event"
	"github.com/sanosuguru/go-event-catalog/internal/infrastructure/postgres"
	redisinfra "github.com/sanosuguru/go-event-catalog/internal/infrastructure/redis"
	"github.com/sanosuguru/go-event-catalog/internal/infrastructure/sqlite"
	"github.com/sanosuguru/go-event-catalog/internal/pkg/clock"
	"github.com/sanosuguru/go-event-catalog/internal/pkg/logger"
	"github.com/sanosuguru/go-event-catalog/internal/pkg/metrics"
	"github.com/sanosuguru/go-event-catalog/internal/worker"
)

func main() {
	cfg := config.Load()
	logger.Setup(cfg.Env)
	defer logger.Sync()

	if err := run(cfg); err != nil {
		logger.Fatal("サーバーが異常終了しました", zap.Error(err))
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.Init()

	store, storePing, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	checks := map[string]handler.Pinger{"storage": storePing}
	repo := store
	opts := []application.Option{
		application.WithClock(clock.NewSystem()),
		application.WithMetrics(m),
	}

	var refresher *worker.CacheRefresher
	if cfg.Redis.Enabled {
		client, err := redisinfra.NewClient(redisinfra.ConfigFrom(&cfg.Redis))
		if err != nil {
			return err
		}
		defer client.Close()

		cached := redisinfra.NewCachedEventRepository(store, redisinfra.NewEventCache(client, cfg.Cache.TTL), m)
		repo = cached
		opts = append(opts, application.WithLocker(redisinfra.NewLockManager(client).WithMetrics(m)))
		checks["redis"] = func(ctx context.Context) error { return redisinfra.Ping(ctx, client) }

		refresher = worker.NewCacheRefresher(cached, cfg.Cache.RefreshInterval)
		go refresher.Start(ctx)
		logger.Info("Redisキャッシュを有効化しました", zap.String("addr", cfg.Redis.Addr()), zap.Duration("ttl", cfg.Cache.TTL))
	}

	e := router.New(router.Deps{
		EventService: application.NewEventService(repo, opts...),
		HealthChecks: checks,
		Metrics:      m,
		Gatherer:     prometheus.DefaultGatherer,
		Auth:         cfg.Auth,
		AllowOrigins: cfg.Server.AllowOrigins,
	})
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout

	errCh := make(chan error, 1)
	go func() {
		if err := e.Start(":" + cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	logger.Info("サーバーを起動しました",
		zap.String("port", cfg.Server.Port),
		zap.String("storage", cfg.Storage.Driver),
		zap.Bool("redis", cfg.Redis.Enabled),
	)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("サーバー起動エラー: %w", err)
	}

	logger.Info("サーバーをシャットダウンしています...")
	if refresher != nil {
		refresher.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("サーバーシャットダウンエラー: %w", err)
	}

	logger.Info("サーバーが正常にシャットダウンしました")
	return nil
}

// openStore は設定されたドライバーでイベントの永続化先を開く
func openStore(ctx context.Context, cfg *config.Config) (event.Repository, handler.Pinger, func() error, error) {
	switch cfg.Storage.Driver {
	case config.DriverSQLite:
		db, err := sqlite.NewConnection(ctx, cfg.Storage.SQLitePath)
		if err != nil {
			return nil, nil, nil, err
		}
		ping := func(ctx context.Context) error { return sqlite.Ping(ctx, db) }
		return sqlite.NewEventRepository(db), ping, db.Close, nil
	default:
		db, err := postgres.NewConnection(ctx, &cfg.Database)
		if err != nil {
			return nil, nil, nil, err
		}
		if _, err := postgres.RunMigrations(db.DB, cfg.Database.MigrationsPath); err != nil {
			db.Close()
			return nil, nil, nil, err
		}
		ping := func(ctx context.Context) error { return postgres.Ping(ctx, db) }
		return postgres.NewEventRepository(db), ping, db.Close, nil
	}
}
