// File: cmd/server/providers.go
package main

import (
	"context"
	"fmt"
	"time"

	"authgate/internal/config"
	"authgate/internal/platform/database"
	"authgate/internal/platform/logger"
	"authgate/internal/platform/mongodb"
	"authgate/internal/shared"
	"authgate/internal/user"

	"go.uber.org/zap"
)

const migrateTimeout = 30 * time.Second

// provideLogger builds the application logger and flushes it on cleanup.
func provideLogger(cfg *config.Config) (*zap.Logger, func(), error) {
	l, err := logger.New(cfg)
	if err != nil {
		return nil, nil, err
	}
	return l, func() { _ = l.Sync() }, nil
}

// provideRepository opens the profile store selected by DB_DRIVER and
// prepares its schema or indexes when DB_AUTO_MIGRATE is set.
func provideRepository(cfg *config.Config, logger *zap.Logger) (user.Repository, func(), error) {
	if cfg.DBDriver == config.DriverMongo {
		client, err := mongodb.NewClient(cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		db := client.Database(cfg.MongoDatabase)
		if cfg.DBAutoMigrate {
			ctx, cancel := context.WithTimeout(context.Background(), migrateTimeout)
			defer cancel()
			if err := user.EnsureMongoIndexes(ctx, db); err != nil {
				mongodb.Close(client, logger)
				return nil, nil, fmt.Errorf("failed to create profile indexes: %w", err)
			}
			logger.Info("MongoDB profile indexes ensured", zap.String("database", cfg.MongoDatabase))
		}
		return user.NewMongoRepository(client, db), func() { mongodb.Close(client, logger) }, nil
	}

	db, err := database.NewGORM(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	if cfg.DBAutoMigrate {
		if err := user.Migrate(db); err != nil {
			database.CloseGORMDB(db, logger)
			return nil, nil, fmt.Errorf("failed to migrate profile table: %w", err)
		}
		logger.Info("Database migration completed", zap.String("driver", cfg.DBDriver))
	}
	return user.NewGORMRepository(db), func() { database.CloseGORMDB(db, logger) }, nil
}

func provideHealthChecker(repo user.Repository) shared.HealthChecker {
	return repo
}
