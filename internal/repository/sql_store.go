package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/eaglebank/ledger/shared/apperrors"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
)

//go:embed schema.sql
var schemaSQL string

// querier is the subset of *sql.DB and *sql.Tx the stores use.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLStore is the PostgreSQL write store (source of truth). It works with both the
// lib/pq ("postgres") and pgx ("pgx") database/sql drivers.
type SQLStore struct {
	db *sql.DB
}

var _ TxManager = (*SQLStore)(nil)

// OpenSQL opens and pings a PostgreSQL pool using driver "postgres" or "pgx".
func OpenSQL(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// Migrate creates the tables if they do not exist yet.
func (s *SQLStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

func (s *SQLStore) Accounts() AccountStore {
	return &AccountWriteRepository{q: s.db}
}

func (s *SQLStore) Users() UserStore {
	return &UserWriteRepository{q: s.db}
}

// WithinTx runs fn in a READ COMMITTED transaction. Account lookups inside it use
// SELECT ... FOR UPDATE, so concurrent writers of the same row queue behind the lock.
func (s *SQLStore) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after Commit

	if err := fn(sqlTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type sqlTx struct {
	tx *sql.Tx
}

func (t sqlTx) Accounts() AccountStore {
	return &AccountWriteRepository{q: t.tx, forUpdate: true}
}

func (t sqlTx) Users() UserStore {
	return &UserWriteRepository{q: t.tx}
}

const uniqueViolation = "23505"

// isUniqueViolation recognises unique_violation from either driver.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolation
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}
	return false
}

// uniqueViolationError maps a unique violation on users.username, the only unique
// column apart from primary keys, to the domain error.
func uniqueViolationError(username string) error {
	return fmt.Errorf("%w: %s", apperrors.ErrUserAlreadyExists, username)
}
