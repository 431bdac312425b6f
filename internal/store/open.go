// Package store provides the postgres-backed persistence used by the correlators.
package store

import (
	"context"
	"errors"
	"fmt"
	stdlog "log"
	"os"
	"time"

	"quorum-indexer/internal/config"
	"quorum-indexer/internal/models"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	connectRetryBase = time.Second
	connectRetryMax  = 30 * time.Second
	connectAttempts  = 10
)

// Open opens a database connection using the provided configuration,
// retrying with capped exponential backoff while the database comes up.
func Open(ctx context.Context, cfg config.Config, log *zap.Logger) (*gorm.DB, error) {
	// Configure GORM logger (Silent to avoid cluttering output; only errors will be logged)
	newLogger := logger.New(
		stdlog.New(os.Stdout, "", stdlog.LstdFlags),
		logger.Config{
			SlowThreshold:             0,
			LogLevel:                  logger.Silent,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	if cfg.DBDialect == "" || cfg.DBDsn == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.DBDialect != config.DatabaseSchemePostgres {
		return nil, fmt.Errorf("unsupported DB_DIALECT: %s", cfg.DBDialect)
	}

	backoff := retry.NewExponential(connectRetryBase)
	backoff = retry.WithCappedDuration(connectRetryMax, backoff)
	backoff = retry.WithMaxRetries(connectAttempts, backoff)

	var db *gorm.DB
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		opened, openErr := gorm.Open(postgres.Open(cfg.DBDsn), &gorm.Config{Logger: newLogger})
		if openErr != nil {
			log.Warn("database not reachable, retrying", zap.Error(openErr))
			return retry.RetryableError(openErr)
		}
		db = opened
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return db, nil
}

// AutoMigrate runs database migrations for all models. The block and
// election tables belong to the chain node; migrating them here only matters
// for a fresh development database.
func AutoMigrate(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	return db.AutoMigrate(
		&models.BlockRecord{},
		&models.ElectionRecord{},
		&models.BlockQuorum{},
		&models.ElectionQuorum{},
		&models.Checkpoint{},
		&models.WitnessStat{},
	)
}
