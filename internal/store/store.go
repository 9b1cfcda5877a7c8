// Package store persists uploaded documents, extraction results, audit
// entries and model call records. It runs on Postgres (through a pgx pool)
// or on SQLite (pure Go, the default for local use and tests); queries are
// built with ent's dialect-aware SQL builder so one code path serves both.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/avast/retry-go/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

// Config configures the database connection.
type Config struct {
	Driver           string
	DSN              string
	MaxConns         int32
	MinConns         int32
	ConnMaxLifetime  time.Duration
	ConnMaxIdleTime  time.Duration
	StatementTimeout time.Duration

	// ConnectAttempts bounds the initial ping retries (default: 5).
	ConnectAttempts uint
	ConnectDelay    time.Duration

	Logger *slog.Logger
}

// Store is the database handle.
type Store struct {
	db      *sql.DB
	drv     *entsql.Driver
	pool    *pgxpool.Pool
	dialect string
	logger  *slog.Logger
}

// Open connects to the configured database and waits until it answers a ping.
// It does not create tables; call Migrate for that.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ConnectAttempts == 0 {
		cfg.ConnectAttempts = 5
	}
	if cfg.ConnectDelay <= 0 {
		cfg.ConnectDelay = 500 * time.Millisecond
	}

	s := &Store{logger: cfg.Logger}
	switch strings.ToLower(cfg.Driver) {
	case DriverPostgres, "postgresql", "pgx":
		if err := s.openPostgres(ctx, cfg); err != nil {
			return nil, err
		}
	case DriverSQLite, "sqlite3", "":
		if err := s.openSQLite(cfg); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	err := retry.Do(
		func() error { return s.db.PingContext(ctx) },
		retry.Context(ctx),
		retry.Attempts(cfg.ConnectAttempts),
		retry.Delay(cfg.ConnectDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			s.logger.Debug("database ping failed, retrying", "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}

	s.logger.Info("connected to database", "driver", s.dialect)
	return s, nil
}

func (s *Store) openPostgres(ctx context.Context, cfg Config) error {
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return fmt.Errorf("invalid postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pc.MinConns = cfg.MinConns
	}
	if cfg.ConnMaxLifetime > 0 {
		pc.MaxConnLifetime = cfg.ConnMaxLifetime
	}
	if cfg.ConnMaxIdleTime > 0 {
		pc.MaxConnIdleTime = cfg.ConnMaxIdleTime
	}
	pc.ConnConfig.RuntimeParams["application_name"] = "claimdoc"
	if cfg.StatementTimeout > 0 {
		pc.ConnConfig.RuntimeParams["statement_timeout"] = fmt.Sprintf("%d", cfg.StatementTimeout.Milliseconds())
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return fmt.Errorf("failed to create postgres pool: %w", err)
	}

	s.pool = pool
	s.db = stdlib.OpenDBFromPool(pool)
	s.drv = entsql.OpenDB(dialect.Postgres, s.db)
	s.dialect = dialect.Postgres
	return nil
}

func (s *Store) openSQLite(cfg Config) error {
	dsn := cfg.DSN
	if dsn == "" {
		dsn = ":memory:"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite: %w", err)
	}
	// SQLite serializes writers; one connection also keeps :memory: databases
	// and connection-scoped pragmas consistent.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to set busy timeout: %w", err)
	}

	s.db = db
	s.drv = entsql.OpenDB(dialect.SQLite, db)
	s.dialect = dialect.SQLite
	return nil
}

// Dialect returns the ent dialect name of the open database.
func (s *Store) Dialect() string {
	return s.dialect
}

// DB returns the underlying *sql.DB.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the connection and pool.
func (s *Store) Close() error {
	var err error
	if s.drv != nil {
		err = s.drv.Close()
	}
	if s.pool != nil {
		s.pool.Close()
	}
	return err
}

func (s *Store) builder() *entsql.DialectBuilder {
	return entsql.Dialect(s.dialect)
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Timestamps are stored as fixed-width UTC text so they sort lexically and
// round-trip identically on both drivers.
const timeLayout = "2006-01-02T15:04:05.000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// now is replaced in tests.
var now = func() time.Time { return time.Now().UTC() }
