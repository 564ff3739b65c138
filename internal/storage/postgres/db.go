// Package postgres stores timesheets in a shared PostgreSQL database so
// several office workstations can run against one payroll record.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Ironbeetle/TCN-Communications-sub000/internal/timesheet"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB wraps a pgx connection pool.
type DB struct {
	pool *pgxpool.Pool
}

// querier is the subset of the pgx API shared by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Open creates a pool for dsn and verifies the connection.
func Open(ctx context.Context, dsn string) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres url: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &DB{pool: pool}, nil
}

// Close releases every pooled connection.
func (db *DB) Close() {
	db.pool.Close()
}

// Ping checks that the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// Migrate brings the schema up to date with goose.
func (db *DB) Migrate(ctx context.Context) error {
	sqlDB := stdlib.OpenDBFromPool(db.pool)
	defer sqlDB.Close()

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, sqlDB, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	if version, err := goose.GetDBVersionContext(ctx, sqlDB); err == nil {
		slog.Info("postgres schema ready", "version", version)
	}
	return nil
}

// WithTx runs fn in a transaction, committing when fn returns nil.
func (db *DB) WithTx(ctx context.Context, fn func(tx querier) error) error {
	err := pgx.BeginFunc(ctx, db.pool, func(tx pgx.Tx) error {
		return fn(tx)
	})
	if err != nil && !isDomainError(err) {
		return classify("transaction", err)
	}
	return err
}

func isDomainError(err error) bool {
	return errors.Is(err, timesheet.ErrNotFound) ||
		errors.Is(err, timesheet.ErrVersionConflict) ||
		errors.Is(err, timesheet.ErrStorageUnavailable)
}

// classify wraps err with op and maps transient failures onto the
// timesheet package's sentinel errors.
func classify(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return fmt.Errorf("%s: %w", op, timesheet.ErrVersionConflict)
		case "57P01", "57P03": // admin_shutdown, cannot_connect_now
			return fmt.Errorf("%s: %w: %v", op, timesheet.ErrStorageUnavailable, err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return fmt.Errorf("%s: %w: %v", op, timesheet.ErrStorageUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
