package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/eaglebank/ledger/shared/apperrors"
	"github.com/eaglebank/ledger/shared/models"
)

const accountColumns = `id, owner_id, currency, amount, created_at, updated_at`

// AccountWriteRepository handles account rows in the PostgreSQL write store.
// When forUpdate is set (inside WithinTx) single-row lookups lock the row.
type AccountWriteRepository struct {
	q         querier
	forUpdate bool
}

var _ AccountStore = (*AccountWriteRepository)(nil)

func (r *AccountWriteRepository) lockClause() string {
	if r.forUpdate {
		return " FOR UPDATE"
	}
	return ""
}

func (r *AccountWriteRepository) FindByID(ctx context.Context, accountID int64) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1` + r.lockClause()
	return r.scanOne(r.q.QueryRowContext(ctx, query, accountID))
}

func (r *AccountWriteRepository) FindByOwnerAndID(ctx context.Context, ownerID, accountID int64) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 AND owner_id = $2` + r.lockClause()
	return r.scanOne(r.q.QueryRowContext(ctx, query, accountID, ownerID))
}

func (r *AccountWriteRepository) FindByOwner(ctx context.Context, ownerID int64) ([]models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE owner_id = $1 ORDER BY id`
	rows, err := r.q.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		var a models.Account
		if err := rows.Scan(&a.ID, &a.OwnerID, &a.Currency, &a.Amount, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return accounts, nil
}

func (r *AccountWriteRepository) Save(ctx context.Context, account *models.Account) error {
	now := time.Now().UTC()
	if account.ID == 0 {
		if account.CreatedAt.IsZero() {
			account.CreatedAt = now
		}
		account.UpdatedAt = now
		query := `
			INSERT INTO accounts (owner_id, currency, amount, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id
		`
		err := r.q.QueryRowContext(ctx, query,
			account.OwnerID, account.Currency, account.Amount, account.CreatedAt, account.UpdatedAt,
		).Scan(&account.ID)
		if err != nil {
			return fmt.Errorf("failed to create account: %w", err)
		}
		return nil
	}

	account.UpdatedAt = now
	query := `
		UPDATE accounts
		SET currency = $2, amount = $3, updated_at = $4
		WHERE id = $1
	`
	result, err := r.q.ExecContext(ctx, query, account.ID, account.Currency, account.Amount, account.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.ErrAccountNotFound
	}
	return nil
}

// Lock issues one SELECT ... FOR UPDATE per id in ascending order. A single
// "WHERE id = ANY($1)" would leave the lock order to the planner.
func (r *AccountWriteRepository) Lock(ctx context.Context, accountIDs ...int64) error {
	if !r.forUpdate {
		return nil
	}
	for _, id := range sortedUnique(accountIDs) {
		var locked int64
		err := r.q.QueryRowContext(ctx, `SELECT id FROM accounts WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to lock account %d: %w", id, err)
		}
	}
	return nil
}

func (r *AccountWriteRepository) scanOne(row *sql.Row) (*models.Account, error) {
	var a models.Account
	err := row.Scan(&a.ID, &a.OwnerID, &a.Currency, &a.Amount, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &a, nil
}
