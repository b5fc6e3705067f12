package main

import (
	"log"

	"go.uber.org/zap"

	"github.com/leozw/domain-activator/internal/app"
	"github.com/leozw/domain-activator/internal/config"
	"github.com/leozw/domain-activator/internal/storage/postgres"
	"github.com/leozw/domain-activator/internal/storage/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := app.NewLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	switch cfg.Database.Driver {
	case config.DriverPostgres:
		if err := postgres.Migrate(cfg.Database.URL); err != nil {
			logger.Fatal("Migration failed", zap.Error(err))
		}
	case config.DriverSQLite:
		store, err := sqlite.Open(cfg.Database.URL)
		if err != nil {
			logger.Fatal("Migration failed", zap.Error(err))
		}
		_ = store.Close()
	default:
		logger.Fatal("Unknown database driver", zap.String("driver", cfg.Database.Driver))
	}

	logger.Info("Schema is up to date", zap.String("driver", cfg.Database.Driver))
}
