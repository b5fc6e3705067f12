package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/leozw/domain-activator/internal/activation"
	"github.com/leozw/domain-activator/internal/api"
	"github.com/leozw/domain-activator/internal/api/handlers"
	"github.com/leozw/domain-activator/internal/app"
	"github.com/leozw/domain-activator/internal/checker"
	"github.com/leozw/domain-activator/internal/config"
	"github.com/leozw/domain-activator/internal/domains"
	"github.com/leozw/domain-activator/internal/metrics"
	"github.com/leozw/domain-activator/internal/queue"
	"github.com/leozw/domain-activator/internal/storage/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.ValidateAPI(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger, err := app.NewLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tenants, err := app.OpenTenantStore(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to open tenant store", zap.Error(err))
	}
	defer tenants.Close()

	cache, err := redis.NewClient(ctx, cfg.Redis.URL)
	if err != nil {
		logger.Fatal("Failed to connect to redis", zap.Error(err))
	}
	defer cache.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewCollector(reg, reg)

	clock := clockwork.NewRealClock()
	notifier := app.NewNotifier(cfg.Notify, cache, logger, m)
	finalizer := activation.NewFinalizer(tenants, notifier, clock, logger, m)
	commands := queue.NewRedisQueue(cache.UniversalClient)

	svc := domains.NewService(
		tenants,
		cache,
		finalizer,
		commands,
		notifier,
		checker.NewWHOISLookup(cfg.Monitor.WHOISTimeout),
		app.PlatformTarget(cfg.Platform),
		clock,
		logger,
	)

	ready := func(ctx context.Context) error {
		if err := tenants.Ping(ctx); err != nil {
			return err
		}
		return cache.Ping(ctx).Err()
	}
	server := api.NewServer(cfg, handlers.NewHandler(svc, ready, logger), reg, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           server.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	logger.Info("API server started", zap.String("port", cfg.Server.Port))

	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("Server exited")
}
