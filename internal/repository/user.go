package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rakhadian/banking-ledger/internal/model"
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetAll(ctx context.Context) ([]*model.User, error)
	Update(ctx context.Context, id int64, name, email string) error
	Delete(ctx context.Context, id int64) error
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	RecordLoginFailure(ctx context.Context, id int64) error
	ResetLoginFailures(ctx context.Context, id int64) error
}

type userRepository struct {
	db *Database
}

func NewUserRepository(db *Database) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	query := `INSERT INTO users (name, email, password_hash) VALUES ($1, $2, $3) RETURNING id, created_at`
	err := r.db.db.QueryRowContext(ctx, query, user.Name, user.Email, user.PasswordHash).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.scanUser(r.db.db.QueryRowContext(ctx,
		`SELECT id, name, email, password_hash, failed_login_count, last_failed_login_at, created_at
         FROM users WHERE email = $1`, email))
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return r.scanUser(r.db.db.QueryRowContext(ctx,
		`SELECT id, name, email, password_hash, failed_login_count, last_failed_login_at, created_at
         FROM users WHERE id = $1`, id))
}

func (r *userRepository) scanUser(row *sql.Row) (*model.User, error) {
	user := &model.User{}
	var lastFailed sql.NullTime
	err := row.Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash,
		&user.FailedLoginCount, &lastFailed, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if lastFailed.Valid {
		user.LastFailedLoginAt = &lastFailed.Time
	}
	return user, nil
}

func (r *userRepository) GetAll(ctx context.Context) ([]*model.User, error) {
	query := `SELECT id, name, email, password_hash, failed_login_count, last_failed_login_at, created_at
              FROM users ORDER BY id ASC`
	rows, err := r.db.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		user := &model.User{}
		var lastFailed sql.NullTime
		if err := rows.Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash,
			&user.FailedLoginCount, &lastFailed, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		if lastFailed.Valid {
			user.LastFailedLoginAt = &lastFailed.Time
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return users, nil
}

func (r *userRepository) Update(ctx context.Context, id int64, name, email string) error {
	query := `UPDATE users SET name = $1, email = $2 WHERE id = $3`
	_, err := r.db.db.ExecContext(ctx, query, name, email, id)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

func (r *userRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.db.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

func (r *userRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	query := `UPDATE users SET password_hash = $1 WHERE id = $2`
	_, err := r.db.db.ExecContext(ctx, query, passwordHash, id)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

// RecordLoginFailure increments the attempt counter atomically so that
// concurrent failed logins are never lost.
func (r *userRepository) RecordLoginFailure(ctx context.Context, id int64) error {
	query := `UPDATE users
              SET failed_login_count = failed_login_count + 1,
                  last_failed_login_at = now()
              WHERE id = $1`
	_, err := r.db.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to record login failure: %w", err)
	}
	return nil
}

func (r *userRepository) ResetLoginFailures(ctx context.Context, id int64) error {
	query := `UPDATE users SET failed_login_count = 0 WHERE id = $1`
	_, err := r.db.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to reset login failures: %w", err)
	}
	return nil
}
