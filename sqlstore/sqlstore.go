// Package sqlstore persists the circulation core in SQLite or PostgreSQL.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"           // registers "postgres"
	_ "github.com/mattn/go-sqlite3" // registers "sqlite3"

	"github.com/kevinaaaquil/circulation/circulation"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
	DriverPGX      = "pgx"
)

// Store implements circulation.Store on top of database/sql.
type Store struct {
	db      *sqlx.DB
	driver  string
	dialect goqu.DialectWrapper
	logger  *slog.Logger
}

var _ circulation.Store = (*Store)(nil)

type Option func(*Store)

// WithLogger logs every statement at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Open connects to dsn with one of DriverSQLite, DriverPostgres or DriverPGX.
func Open(ctx context.Context, driver, dsn string, opts ...Option) (*Store, error) {
	dialect, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("sqlstore: unsupported driver %q", driver)
	}
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// one writer at a time; transactions queue on the pool instead of SQLITE_BUSY
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(50)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(time.Hour)
		db.SetConnMaxIdleTime(5 * time.Minute)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlstore: ping %s: %w", driver, err)
	}
	s := &Store{
		db:      db,
		driver:  driver,
		dialect: goqu.Dialect(dialect),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SQLiteDSN builds a DSN with a busy timeout and foreign keys enabled.
func SQLiteDSN(path string) string {
	return fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=1", path)
}

var dialects = map[string]string{
	DriverSQLite:   "sqlite3",
	DriverPostgres: "postgres",
	DriverPGX:      "postgres",
}

func (s *Store) Close() error {
	return s.db.Close()
}

// querier is satisfied by both *sqlx.DB and *sqlx.Tx.
type querier interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type sqlBuilder interface {
	ToSQL() (string, []interface{}, error)
}

func (s *Store) build(b sqlBuilder) (string, []interface{}, error) {
	query, args, err := b.ToSQL()
	if err != nil {
		return "", nil, fmt.Errorf("sqlstore: build query: %w", err)
	}
	s.logger.Debug("sql", slog.String("query", query), slog.Int("args", len(args)))
	return query, args, nil
}

func (s *Store) get(ctx context.Context, q querier, dest interface{}, b sqlBuilder) error {
	query, args, err := s.build(b)
	if err != nil {
		return err
	}
	return q.GetContext(ctx, dest, query, args...)
}

func (s *Store) selectAll(ctx context.Context, q querier, dest interface{}, b sqlBuilder) error {
	query, args, err := s.build(b)
	if err != nil {
		return err
	}
	return q.SelectContext(ctx, dest, query, args...)
}

// exec runs b and returns the number of affected rows.
func (s *Store) exec(ctx context.Context, q querier, b sqlBuilder) (int64, error) {
	query, args, err := s.build(b)
	if err != nil {
		return 0, err
	}
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// inTx runs fn in a transaction that is committed only if fn succeeds.
func (s *Store) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return classify(err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return classify(err)
	}
	return classify(tx.Commit())
}
