package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"library/internal/models"
	"library/internal/storage"
	"library/migrations"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"

	pgUniqueViolation = "23505"
)

// dialect holds the per-driver differences the queries care about
type dialect struct {
	name      string // goose dialect and migrations directory
	forUpdate string
	forShare  string
}

var (
	postgresDialect = dialect{name: DriverPostgres, forUpdate: " FOR UPDATE", forShare: " FOR SHARE"}
	// SQLite serializes writers with BEGIN IMMEDIATE, so no row lock clauses exist
	sqliteDialect = dialect{name: DriverSQLite}
)

// Store implements storage.Storage on top of a relational database
type Store struct {
	db          *sqlx.DB
	dialect     dialect
	logger      *zap.Logger
	autoMigrate bool
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the logger used for query diagnostics
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithAutoMigrate controls whether Initialize applies pending migrations
func WithAutoMigrate(enabled bool) Option {
	return func(s *Store) {
		s.autoMigrate = enabled
	}
}

// OpenPostgres connects to Postgres through the pgx stdlib driver
func OpenPostgres(ctx context.Context, dsn string, options ...Option) (*Store, error) {
	const (
		defaultMaxOpenConnections = 25
		defaultMaxIdleConnections = 5
		defaultMaxConnLifetime    = time.Hour
		defaultMaxConnIdleTime    = 5 * time.Minute
	)

	db, err := sqlx.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(defaultMaxOpenConnections)
	db.SetMaxIdleConns(defaultMaxIdleConnections)
	db.SetConnMaxLifetime(defaultMaxConnLifetime)
	db.SetConnMaxIdleTime(defaultMaxConnIdleTime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return newStore(db, postgresDialect, options), nil
}

// OpenSQLite opens (creating if needed) the SQLite database file at path
func OpenSQLite(ctx context.Context, path string, options ...Option) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=1&_txlock=immediate", path)
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	// One writer at a time; the busy timeout covers the rest
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	return newStore(db, sqliteDialect, options), nil
}

func newStore(db *sqlx.DB, d dialect, options []Option) *Store {
	s := &Store{
		db:          db,
		dialect:     d,
		logger:      zap.NewNop(),
		autoMigrate: true,
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// Initialize applies the embedded migrations unless auto-migration is disabled
func (s *Store) Initialize(ctx context.Context) error {
	if !s.autoMigrate {
		s.logger.Info("Skipping migrations", zap.String("dialect", s.dialect.name))
		return nil
	}
	if err := migrations.Up(ctx, s.db.DB, s.dialect.name, s.logger); err != nil {
		return err
	}
	s.logger.Info("Migrations applied", zap.String("dialect", s.dialect.name))
	return nil
}

// Close closes the connection pool
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DB exposes the underlying pool for tooling and tests
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// rebind converts ? placeholders to the driver's bind style
func (s *Store) rebind(query string) string {
	return s.db.Rebind(query)
}

// withTx runs fn inside one transaction. The transaction is rolled back on
// every exit path except a successful commit.
func (s *Store) withTx(ctx context.Context, op string, fn func(tx *sqlx.Tx) error) error {
	start := time.Now()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin %s: %w", op, err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		s.logger.Debug("Transaction rolled back",
			zap.String("op", op),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit %s: %w", op, err)
	}

	s.logger.Debug("Transaction committed",
		zap.String("op", op),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

// countActiveLoans counts BORROWED loans whose column (book_id or member_id) equals id
func (s *Store) countActiveLoans(ctx context.Context, tx *sqlx.Tx, column string, id int64) (int, error) {
	var n int
	query := s.rebind(`SELECT COUNT(*) FROM loans WHERE ` + column + ` = ? AND status = ?`)
	if err := tx.GetContext(ctx, &n, query, id, string(models.LoanBorrowed)); err != nil {
		return 0, fmt.Errorf("failed to count active loans: %w", err)
	}
	return n, nil
}

// isUniqueViolation reports whether err is a unique constraint failure on either driver
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

// wrapWriteErr maps unique violations to storage.ErrDuplicate
func wrapWriteErr(action string, err error) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("failed to %s: %w", action, storage.ErrDuplicate)
	}
	return fmt.Errorf("failed to %s: %w", action, err)
}

var _ storage.Storage = (*Store)(nil)
