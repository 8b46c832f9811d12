package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

type Config struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// DB is a *sql.DB that knows which SQL dialect it speaks.
type DB struct {
	*sql.DB
	dialect string
	pool    *pgxpool.Pool
	logger  *slog.Logger
}

// DialectFor picks the dialect from the DSN scheme. postgres:// and
// postgresql:// are Postgres; anything else is treated as a SQLite path.
func DialectFor(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return dialect.Postgres
	}
	return dialect.SQLite
}

// Open connects to Postgres through a pgx pool, or opens a SQLite file.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	d := DialectFor(cfg.DSN)
	logger.Info("connecting to database", "dialect", d)

	var (
		db  *DB
		err error
	)
	switch d {
	case dialect.Postgres:
		db, err = openPostgres(ctx, cfg)
	default:
		db, err = openSQLite(cfg)
	}
	if err != nil {
		logger.Error("failed to connect to database", "dialect", d, "error", err)
		return nil, err
	}
	db.logger = logger

	if err := db.HealthCheck(ctx, cfg.DialTimeout); err != nil {
		logger.Error("failed to connect to database", "dialect", d, "error", err)
		db.Close()
		return nil, err
	}
	logger.Info("successfully connected to database", "dialect", d)
	return db, nil
}

func openPostgres(ctx context.Context, cfg Config) (*DB, error) {
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, err
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	pc.MinConns = cfg.MinConns
	pc.MaxConnLifetime = cfg.MaxConnLifetime
	pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	pc.ConnConfig.RuntimeParams["application_name"] = "referral-intake"
	if cfg.StatementTimeout > 0 {
		pc.ConnConfig.RuntimeParams["statement_timeout"] = fmt.Sprint(cfg.StatementTimeout.Milliseconds())
	}

	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, err
	}

	// Wrap pool as *sql.DB so the same builders serve both dialects.
	return &DB{DB: stdlib.OpenDBFromPool(pool), dialect: dialect.Postgres, pool: pool}, nil
}

func openSQLite(cfg Config) (*DB, error) {
	sqldb, err := sql.Open("sqlite", sqliteDSN(cfg.DSN))
	if err != nil {
		return nil, err
	}
	// A single connection serializes writers; conditional updates stay atomic.
	sqldb.SetMaxOpenConns(1)
	return &DB{DB: sqldb, dialect: dialect.SQLite}, nil
}

func sqliteDSN(dsn string) string {
	dsn = strings.TrimPrefix(dsn, "sqlite://")
	dsn = strings.TrimPrefix(dsn, "sqlite:")
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// Dialect returns the ent dialect name (postgres or sqlite3).
func (d *DB) Dialect() string { return d.dialect }

func (d *DB) builder() *entsql.DialectBuilder {
	return entsql.Dialect(d.dialect)
}

// Close closes the database connections gracefully
func (d *DB) Close() {
	if d == nil {
		return
	}
	logger := d.logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("closing database connections")
	if err := d.DB.Close(); err != nil {
		logger.Error("failed to close database", "error", err)
	}
	if d.pool != nil {
		d.pool.Close()
	}
	logger.Info("database connections closed")
}

// HealthCheck pings using database/sql to catch DSN issues early.
func (d *DB) HealthCheck(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return d.PingContext(ctx)
}

// WithTx runs fn in a transaction, committing when fn returns nil.
// fn must use only tx: SQLite runs with a single connection.
func (d *DB) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			d.logger.Warn("db.tx.rollback_failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
