package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/koopa0/pong-match/internal/config"
	"github.com/koopa0/pong-match/internal/handler"
	"github.com/koopa0/pong-match/internal/manager"
	"github.com/koopa0/pong-match/internal/migrations"
	"github.com/koopa0/pong-match/internal/notify"
	"github.com/koopa0/pong-match/internal/storage"
	"github.com/koopa0/pong-match/pkg/logger"
	"github.com/redis/go-redis/v9"
)

func main() {
	configPath := flag.String("config", "config.yaml", "配置檔案路徑")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format, os.Stdout)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}

// run 組裝依賴並運行直到收到關閉信號
func run(cfg *config.Config, log *slog.Logger) error {
	ctx := context.Background()

	// 結果儲存與玩家名稱
	var (
		store storage.ResultStore
		users storage.UserDirectory
	)
	memory := storage.NewMemory()
	store, users = memory, memory

	if cfg.Postgres.Enabled {
		pool, err := connectPostgres(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer pool.Close()

		pg := storage.NewPostgres(pool)
		store, users = pg, pg
	}

	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer redisClient.Close()

		users = storage.NewCachedDirectory(redisClient, users, cfg.Redis.NameTTL, log)
	}

	// 結束通知
	var notifier notify.Notifier = notify.NewLogNotifier(log)
	if cfg.NATS.Enabled {
		natsNotifier, err := notify.NewNATSNotifier(notify.NATSConfig{
			URL:     cfg.NATS.URL,
			Stream:  cfg.NATS.Stream,
			Subject: cfg.NATS.Subject,
			MaxAge:  cfg.NATS.MaxAge,
		}, log)
		if err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		defer natsNotifier.Close()
		notifier = natsNotifier
	}

	mgr := manager.NewManager(cfg.ManagerConfig(), store, users, notifier, log)
	hub := handler.NewHub(mgr, cfg.Server.StateInterval, log)

	mux := handler.NewHandler(mgr, log).Routes()
	mux.HandleFunc("GET /ws/matches/{match_id}", hub.ServeWS)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("starting server",
			"port", cfg.Server.Port,
			"postgres", cfg.Postgres.Enabled,
			"redis", cfg.Redis.Enabled,
			"nats", cfg.NATS.Enabled)
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}

	case sig := <-shutdown:
		log.Info("shutdown signal received", "signal", sig)

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// 先停止接受新請求，再結束所有對戰
		if err := srv.Shutdown(ctx); err != nil {
			log.Error("failed to shutdown server", "error", err)
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("failed to force close server", "error", closeErr)
			}
		}
		hub.Stop()

		if err := mgr.Shutdown(ctx); err != nil {
			log.Error("failed to shutdown matches", "error", err)
		}
	}

	log.Info("server stopped")
	return nil
}

// connectPostgres 建立連線池並執行遷移
func connectPostgres(ctx context.Context, cfg *config.Config, log *slog.Logger) (*pgxpool.Pool, error) {
	dsn := cfg.PostgresURL()

	if err := migrations.Ensure(ctx, dsn, log); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	pgConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	pgConfig.MaxConns = cfg.Postgres.MaxConns
	pgConfig.MinConns = cfg.Postgres.MinConns

	pool, err := pgxpool.NewWithConfig(ctx, pgConfig)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}
