// Package database открывает пул соединений Postgres.
package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type PostgresConfig struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdle     time.Duration
	ConnMaxLifetime time.Duration
	// PingTimeout ограничивает ожидание готовности базы.
	PingTimeout time.Duration
}

// NewPostgres открывает пул и ждет ответа базы с растущей задержкой.
func NewPostgres(ctx context.Context, cfg PostgresConfig, logger *slog.Logger) (*sqlx.DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	driver := cfg.Driver
	if driver == "" {
		driver = "pgx"
	}
	db, err := sqlx.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdle)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := Ping(ctx, db, cfg.PingTimeout, logger); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Pinger проверяет доступность базы.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Ping повторяет проверку до успеха или истечения timeout.
func Ping(ctx context.Context, db Pinger, timeout time.Duration, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxInterval = 5 * time.Second

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, db.PingContext(ctx)
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxElapsedTime(timeout),
		backoff.WithNotify(func(err error, wait time.Duration) {
			logger.Warn("postgres not ready yet", slog.String("error", err.Error()), slog.Duration("retry_in", wait))
		}),
	)
	if err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}
