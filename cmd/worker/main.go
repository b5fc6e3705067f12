package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/miekg/dns"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/leozw/domain-activator/internal/activation"
	"github.com/leozw/domain-activator/internal/app"
	"github.com/leozw/domain-activator/internal/checker"
	"github.com/leozw/domain-activator/internal/config"
	"github.com/leozw/domain-activator/internal/metrics"
	"github.com/leozw/domain-activator/internal/queue"
	"github.com/leozw/domain-activator/internal/scheduler"
	"github.com/leozw/domain-activator/internal/storage/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
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
	reg.MustRegister(collectors.NewGoCollector())
	m := metrics.NewCollector(reg, reg)

	registrarClient, err := app.NewRegistrar(cfg.Registrar, cfg.Monitor)
	if err != nil {
		logger.Fatal("Failed to create registrar client", zap.Error(err))
	}

	target := app.PlatformTarget(cfg.Platform)
	nameservers := make([]string, 0, len(cfg.Platform.Nameservers))
	for _, ns := range cfg.Platform.Nameservers {
		nameservers = append(nameservers, checker.NameserverAddr(ns))
	}
	dnsChecker := checker.NewDNSChecker(&dns.Client{Timeout: cfg.Monitor.DNSTimeout}, target, nameservers, cfg.Monitor.DNSTimeout)

	analyzer := checker.NewAnalyzer(
		checker.NewDualVerifier(dnsChecker),
		checker.NewRegistrarCheck(registrarClient, cfg.Monitor.RegistrarTimeout),
		checker.NewHealthProbe(cfg.Monitor.HealthTimeout),
		m,
	)

	clock := clockwork.NewRealClock()
	notifier := app.NewNotifier(cfg.Notify, cache, logger, m)
	finalizer := activation.NewFinalizer(tenants, notifier, clock, logger, m)
	monitor := scheduler.NewMonitor(analyzer, finalizer, tenants, cache, cfg.Monitor, clock, logger, m)

	if _, err := monitor.Resume(ctx); err != nil {
		logger.Error("Failed to resume monitoring sessions", zap.Error(err))
	}

	worker := scheduler.NewWorker(0, queue.NewRedisQueue(cache.UniversalClient), monitor, m, logger)
	go worker.Start(ctx)

	if cfg.Metrics.RemoteWriteURL != "" {
		go metrics.NewRemoteWriter(m, cfg.Metrics, logger).Start(ctx)
	}

	logger.Info("Worker started",
		zap.Duration("tick_interval", cfg.Monitor.TickInterval),
		zap.Duration("timeout", cfg.Monitor.Timeout),
		zap.String("registrar", cfg.Registrar.Provider),
	)

	<-ctx.Done()
	logger.Info("Shutting down worker...")
	monitor.Stop()
	logger.Info("Worker exited")
}
