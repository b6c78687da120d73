package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"translink/internal/config"
	"translink/internal/domain"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	_ "github.com/mattn/go-sqlite3"    // sqlite3 driver
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

// Store implements domain.Repository over a connection pool or a transaction.
// Queries are written with ? placeholders and rebound for PostgreSQL.
type Store struct {
	q      querier
	driver string
}

func (s *Store) rebind(query string) string {
	if s.driver != config.DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// forUpdate returns the row-lock suffix for SELECTs inside a transaction.
func (s *Store) forUpdate() string {
	if s.driver == config.DriverPostgres {
		return " FOR UPDATE"
	}
	return ""
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.q.ExecContext(ctx, s.rebind(query), args...)
}

func (s *Store) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.q.QueryContext(ctx, s.rebind(query), args...)
}

func (s *Store) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.q.QueryRowContext(ctx, s.rebind(query), args...)
}

// insert runs an INSERT and returns the generated id.
func (s *Store) insert(ctx context.Context, query string, args ...any) (int64, error) {
	var id int64
	if err := s.queryRow(ctx, query+" RETURNING id", args...).Scan(&id); err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: %v", ErrDuplicate, err)
		}
		return 0, err
	}
	return id, nil
}

// execOne runs an UPDATE that must touch exactly one row and returns noRows
// when it touched none.
func (s *Store) execOne(ctx context.Context, noRows error, query string, args ...any) error {
	result, err := s.exec(ctx, query, args...)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		return noRows
	}
	return nil
}

func now() time.Time {
	return time.Now().UTC()
}

// DB owns the connection pool.
type DB struct {
	*Store
	sqlDB      *sql.DB
	path       string
	maxRetries uint64
	retryDelay time.Duration
	logger     *zerolog.Logger
}

var memSeq atomic.Int64

// Open connects to the configured database and applies migrations.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *zerolog.Logger) (*DB, error) {
	var (
		sqlDB *sql.DB
		err   error
	)

	switch cfg.Driver {
	case config.DriverPostgres:
		sqlDB, err = sql.Open("pgx", cfg.Postgres.DSN())
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		sqlDB.SetMaxOpenConns(cfg.Postgres.MaxConnections)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	case config.DriverSQLite, "":
		cfg.Driver = config.DriverSQLite
		dsn, err := sqliteDSN(cfg.Path)
		if err != nil {
			return nil, err
		}
		sqlDB, err = sql.Open("sqlite3", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		// Один writer: SQLite сериализует запись, пул из одного соединения
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	// Проверяем соединение
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := migrate(ctx, sqlDB, cfg.Driver, logger); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 50 * time.Millisecond
	}

	db := &DB{
		Store:      &Store{q: sqlDB, driver: cfg.Driver},
		sqlDB:      sqlDB,
		path:       cfg.Path,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		logger:     logger,
	}

	logger.Info().Str("driver", cfg.Driver).Str("path", cfg.Path).Msg("Database initialized")
	return db, nil
}

// NewDB opens a SQLite database at path; ":memory:" gives a private
// in-memory database.
func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	return Open(context.Background(), config.DatabaseConfig{Driver: config.DriverSQLite, Path: path}, logger)
}

func sqliteDSN(path string) (string, error) {
	const params = "_foreign_keys=on&_busy_timeout=5000"
	if path == ":memory:" {
		return fmt.Sprintf("file:translink_mem_%d?mode=memory&%s", memSeq.Add(1), params), nil
	}

	// Создаем директорию для БД, если её нет
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create database directory: %w", err)
	}
	return fmt.Sprintf("file:%s?_journal_mode=WAL&%s", path, params), nil
}

// WithTx runs fn in a transaction. Transient storage failures re-run the whole
// transaction with exponential backoff; any other error rolls it back.
func (db *DB) WithTx(ctx context.Context, fn func(tx domain.Repository) error) error {
	backoff := retry.WithMaxRetries(db.maxRetries, retry.NewExponential(db.retryDelay))
	attempt := 0

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := db.runTx(ctx, fn)
		if err != nil && isTransient(err) {
			db.logger.Warn().Err(err).Int("attempt", attempt).Msg("Transient database error, retrying transaction")
			return retry.RetryableError(err)
		}
		return err
	})
}

func (db *DB) runTx(ctx context.Context, fn func(tx domain.Repository) error) error {
	tx, err := db.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(&Store{q: tx, driver: db.driver}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (db *DB) Ping(ctx context.Context) error {
	return db.sqlDB.PingContext(ctx)
}

func (db *DB) Close() error {
	return db.sqlDB.Close()
}

// Driver returns the configured driver name.
func (db *DB) Driver() string {
	return db.driver
}

// Path returns the SQLite file path, empty for PostgreSQL.
func (db *DB) Path() string {
	if db.driver != config.DriverSQLite {
		return ""
	}
	return db.path
}
