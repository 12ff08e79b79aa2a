package database

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// PostgresOptions bound the startup retry loop and size the pool.
type PostgresOptions struct {
	Attempts     int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	MaxOpenConns int
	MaxIdleConns int
}

var DefaultPostgresOptions = PostgresOptions{
	Attempts:     10,
	InitialDelay: time.Second,
	MaxDelay:     15 * time.Second,
	MaxOpenConns: 25,
	MaxIdleConns: 5,
}

// ConnectPostgres opens dsn with DefaultPostgresOptions.
func ConnectPostgres(ctx context.Context, dsn string, log *zap.Logger) (*gorm.DB, error) {
	return ConnectPostgresWith(ctx, dsn, DefaultPostgresOptions, log)
}

// ConnectPostgresWith retries until the server answers a ping, doubling the
// delay between attempts up to opts.MaxDelay.
func ConnectPostgresWith(ctx context.Context, dsn string, opts PostgresOptions, log *zap.Logger) (*gorm.DB, error) {
	delay := opts.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= opts.Attempts; attempt++ {
		db, err := openPostgres(ctx, dsn, opts)
		if err == nil {
			log.Info("Connected to PostgreSQL", zap.Int("attempt", attempt))
			return db, nil
		}
		lastErr = err
		log.Warn("PostgreSQL not ready", zap.Int("attempt", attempt), zap.Duration("retry_in", delay), zap.Error(err))

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("connect postgres: %w", ctx.Err())
		case <-time.After(delay):
		}
		delay = min(delay*2, opts.MaxDelay)
	}
	return nil, fmt.Errorf("connect postgres after %d attempts: %w", opts.Attempts, lastErr)
}

func openPostgres(ctx context.Context, dsn string, opts PostgresOptions) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)
	return db, nil
}

// ClosePostgres closes the pool behind db. A nil db is ignored.
func ClosePostgres(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
