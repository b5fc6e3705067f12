// Package app wires configuration into the concrete components shared by
// the api and worker binaries.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/leozw/domain-activator/internal/config"
	"github.com/leozw/domain-activator/internal/core"
	"github.com/leozw/domain-activator/internal/metrics"
	"github.com/leozw/domain-activator/internal/notify"
	"github.com/leozw/domain-activator/internal/registrar"
	"github.com/leozw/domain-activator/internal/storage"
	"github.com/leozw/domain-activator/internal/storage/postgres"
	"github.com/leozw/domain-activator/internal/storage/sqlite"
)

func NewLogger(cfg config.LogConfig) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	if cfg.Level != "" {
		level, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("log.level: %w", err)
		}
		zcfg.Level = zap.NewAtomicLevelAt(level)
	}
	return zcfg.Build()
}

// TenantStore is an opened tenant store with its lifecycle hooks.
type TenantStore struct {
	storage.TenantStore
	Ping  func(ctx context.Context) error
	Close func() error
}

func OpenTenantStore(cfg config.DatabaseConfig) (*TenantStore, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		db, err := postgres.NewConnection(cfg.URL, cfg.MaxConnections, cfg.MaxIdleConns)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		return &TenantStore{
			TenantStore: postgres.NewTenantRepo(db),
			Ping:        db.PingContext,
			Close:       db.Close,
		}, nil
	case config.DriverSQLite:
		store, err := sqlite.Open(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		return &TenantStore{
			TenantStore: store,
			Ping:        store.Ping,
			Close:       store.Close,
		}, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// NewRegistrar returns nil for the none provider; the registrar signal is
// then always unverified.
func NewRegistrar(cfg config.RegistrarConfig, mon config.MonitorConfig) (registrar.Client, error) {
	switch cfg.Provider {
	case config.ProviderNone, "":
		return nil, nil
	case config.ProviderREST:
		return registrar.NewREST(cfg.BaseURL, cfg.APIToken, cfg.RequestsPerSecond, mon.RegistrarTimeout), nil
	case config.ProviderAliDNS:
		client, err := registrar.NewAliDNS(cfg.RegionID, cfg.AccessKeyID, cfg.AccessKeySecret, mon.RegistrarTimeout)
		if err != nil {
			return nil, fmt.Errorf("init alidns client: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown registrar provider %q", cfg.Provider)
	}
}

// NewNotifier always logs events and, for the email provider, mails them.
// Delivery goes through Once so each event is sent at most once per key.
func NewNotifier(cfg config.NotifyConfig, claims notify.Claimer, logger *zap.Logger, m *metrics.Collector) notify.Notifier {
	var next notify.Notifier = notify.NewLogNotifier(logger)
	if cfg.Provider == config.NotifyEmail {
		next = notify.Multi{next, notify.NewEmailNotifier(notify.EmailConfig{
			APIKey:       cfg.ResendAPIKey,
			FromEmail:    cfg.FromEmail,
			FromName:     cfg.FromName,
			SupportEmail: cfg.SupportEmail,
		})}
	}
	if claims == nil {
		claims = notify.NewMemoryClaims()
	}
	return notify.NewOnce(next, claims, cfg.DedupTTL, logger, m)
}

func PlatformTarget(cfg config.PlatformConfig) core.PlatformTarget {
	return core.PlatformTarget{CNAME: cfg.CNAMETarget, ARecords: cfg.ARecords}
}
