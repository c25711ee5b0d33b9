package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/jcmexdev/orderium/internal/cart/app"
	"github.com/jcmexdev/orderium/internal/notify/alerts"
	"github.com/jcmexdev/orderium/internal/notify/channel"
	"github.com/jcmexdev/orderium/internal/notify/desktop"
	"github.com/jcmexdev/orderium/internal/notify/dispatcher"
	"github.com/jcmexdev/orderium/internal/notify/permission"
	"github.com/jcmexdev/orderium/internal/pkg/cache"
	"github.com/jcmexdev/orderium/internal/pkg/config"
	"github.com/jcmexdev/orderium/internal/pkg/kv"
	"github.com/jcmexdev/orderium/internal/pkg/telemetry"
	"github.com/jcmexdev/orderium/internal/storefront/httpx"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	log := telemetry.InitLogger(cfg.LogLevel, cfg.ServiceName, cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.TracingEnabled {
		shutdown, err := telemetry.SetupTracer(ctx, telemetry.TracerConfig{
			ServiceName: cfg.ServiceName,
			Environment: cfg.Env,
			SampleRatio: cfg.TraceSampleRate,
		})
		if err != nil {
			slog.Error("failed to initialise tracer", "error", err)
			os.Exit(1)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				slog.Error("tracer shutdown error", "error", err)
			}
		}()
	}

	var redisClient *redis.Client
	if cfg.CartStorage == config.StorageRedis || cfg.CacheBackend == config.StorageRedis {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
	}

	storage, closeStorage, err := openStorage(cfg, redisClient)
	if err != nil {
		slog.Error("failed to open cart storage", "backend", cfg.CartStorage, "error", err)
		os.Exit(1)
	}
	defer closeStorage()

	store := app.NewStore(ctx, storage, app.WithTTL(cfg.CartTTL), app.WithLogger(log.With("component", "cart")))

	queryCache := cache.NewMemoryCache(cfg.ServiceName, log)
	if cfg.CacheBackend == config.StorageRedis {
		queryCache = cache.NewRedisCache(redisClient, cfg.ServiceName, log)
	}

	feed := alerts.NewFeed(alerts.DefaultCapacity, log.With("component", "alerts"))
	platform := desktop.NewLogPlatform(log.With("component", "desktop"), permission.Parse(cfg.NotificationPermission))
	gate := permission.NewGate(platform, log)
	gate.Watch(func(p permission.Permission) {
		slog.Info("notification permission changed", "permission", p)
	})
	notifier := desktop.NewNotifier(platform, desktop.WithLogger(log))
	defer func() {
		slog.Info("closing desktop notifications", "open", notifier.Open())
		notifier.CloseAll()
	}()

	ch := channel.New(newTransport(cfg), channel.Session{
		Token:      cfg.AuthToken,
		CustomerID: cfg.CustomerID,
	}, channel.WithLogger(log.With("component", "channel")))
	defer ch.Close()

	notifications := dispatcher.New(ch, feed, queryCache, notifier, gate, log.With("component", "dispatcher"))
	defer notifications.Disable()
	if cfg.NotificationsEnabled {
		notifications.Enable(ctx)
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpx.NewRouter(httpx.NewHandler(store, notifications, feed, queryCache)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("storefront running", "addr", cfg.HTTPAddr, "cart_storage", cfg.CartStorage, "events", cfg.EventsTransport)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("storefront stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("storefront stopped")
}

func openStorage(cfg config.Config, client *redis.Client) (app.Storage, func(), error) {
	noop := func() {}
	switch cfg.CartStorage {
	case config.StorageSQLite:
		db, err := kv.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, noop, err
		}
		return db, func() { _ = db.Close() }, nil
	case config.StoragePostgres:
		db, err := kv.Open(kv.DriverPostgres, cfg.PostgresDSN)
		if err != nil {
			return nil, noop, err
		}
		return db, func() { _ = db.Close() }, nil
	case config.StorageRedis:
		return kv.NewRedis(client, cfg.ServiceName, cfg.CartTTL), noop, nil
	case config.StorageMemory:
		return kv.NewMemory(), noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown cart storage %q", cfg.CartStorage)
	}
}

func newTransport(cfg config.Config) channel.Transport {
	if cfg.EventsTransport == config.TransportKafka {
		return channel.NewKafkaTransport(cfg.KafkaBrokers, cfg.KafkaTopic)
	}
	return channel.NewWebSocketTransport(cfg.EventsURL)
}
