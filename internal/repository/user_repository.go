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

const userColumns = `id, username, password_hash, role, created_at`

// UserWriteRepository handles user rows in the PostgreSQL write store.
type UserWriteRepository struct {
	q querier
}

var _ UserStore = (*UserWriteRepository)(nil)

func (r *UserWriteRepository) FindByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.q.QueryRowContext(ctx, query, id))
}

func (r *UserWriteRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return scanUser(r.q.QueryRowContext(ctx, query, username))
}

func (r *UserWriteRepository) FindAll(ctx context.Context) ([]models.User, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

func (r *UserWriteRepository) Save(ctx context.Context, user *models.User) error {
	if user.ID != 0 {
		query := `UPDATE users SET username = $2, password_hash = $3, role = $4 WHERE id = $1`
		result, err := r.q.ExecContext(ctx, query, user.ID, user.Username, user.PasswordHash, user.Role)
		if err != nil {
			if isUniqueViolation(err) {
				return uniqueViolationError(user.Username)
			}
			return fmt.Errorf("failed to update user: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check rows affected: %w", err)
		}
		if rows == 0 {
			return apperrors.ErrUserNotFound
		}
		return nil
	}

	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO users (username, password_hash, role, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	err := r.q.QueryRowContext(ctx, query, user.Username, user.PasswordHash, user.Role, user.CreatedAt).Scan(&user.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return uniqueViolationError(user.Username)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}
