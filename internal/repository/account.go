package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rakhadian/banking-ledger/internal/model"
)

type AccountRepository interface {
	Create(ctx context.Context, account *model.Account) error
	GetByNumber(ctx context.Context, number string) (*model.Account, error)
	GetByNumberForUpdate(ctx context.Context, tx *sql.Tx, number string) (*model.Account, error)
	GetByUserID(ctx context.Context, userID int64) ([]*model.Account, error)
	GetAll(ctx context.Context) ([]*model.Account, error)
	Exists(ctx context.Context, number string) (bool, error)
	SetBalance(ctx context.Context, tx *sql.Tx, number string, balance int64) error
	Delete(ctx context.Context, number string) error
	BeginTx(ctx context.Context) (*sql.Tx, error)
}

type accountRepository struct {
	db *Database
}

func NewAccountRepository(db *Database) AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) Create(ctx context.Context, account *model.Account) error {
	query := `INSERT INTO accounts (account_number, user_id, name, pin_hash, balance)
              VALUES ($1, $2, $3, $4, $5) RETURNING created_at`
	err := r.db.db.QueryRowContext(ctx, query,
		account.Number,
		account.UserID,
		account.Name,
		account.PINHash,
		account.Balance,
	).Scan(&account.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func (r *accountRepository) GetByNumber(ctx context.Context, number string) (*model.Account, error) {
	account := &model.Account{}
	query := `SELECT account_number, user_id, name, pin_hash, balance, created_at
              FROM accounts WHERE account_number = $1`
	err := r.db.db.QueryRowContext(ctx, query, number).Scan(
		&account.Number,
		&account.UserID,
		&account.Name,
		&account.PINHash,
		&account.Balance,
		&account.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

// GetByNumberForUpdate locks the account row for the duration of tx so that
// concurrent balance mutations on the same account serialize.
func (r *accountRepository) GetByNumberForUpdate(ctx context.Context, tx *sql.Tx, number string) (*model.Account, error) {
	account := &model.Account{}
	query := `SELECT account_number, user_id, name, pin_hash, balance, created_at
              FROM accounts WHERE account_number = $1 FOR UPDATE`
	err := tx.QueryRowContext(ctx, query, number).Scan(
		&account.Number,
		&account.UserID,
		&account.Name,
		&account.PINHash,
		&account.Balance,
		&account.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock account: %w", err)
	}
	return account, nil
}

func (r *accountRepository) GetByUserID(ctx context.Context, userID int64) ([]*model.Account, error) {
	query := `SELECT account_number, user_id, name, pin_hash, balance, created_at
              FROM accounts
              WHERE user_id = $1
              ORDER BY created_at ASC`
	rows, err := r.db.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	return scanAccounts(rows)
}

func (r *accountRepository) GetAll(ctx context.Context) ([]*model.Account, error) {
	query := `SELECT account_number, user_id, name, pin_hash, balance, created_at
              FROM accounts ORDER BY created_at ASC`
	rows, err := r.db.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	return scanAccounts(rows)
}

func scanAccounts(rows *sql.Rows) ([]*model.Account, error) {
	var accounts []*model.Account
	for rows.Next() {
		var account model.Account
		if err := rows.Scan(
			&account.Number,
			&account.UserID,
			&account.Name,
			&account.PINHash,
			&account.Balance,
			&account.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, &account)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return accounts, nil
}

func (r *accountRepository) Exists(ctx context.Context, number string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM accounts WHERE account_number = $1)`
	if err := r.db.db.QueryRowContext(ctx, query, number).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check account existence: %w", err)
	}
	return exists, nil
}

func (r *accountRepository) SetBalance(ctx context.Context, tx *sql.Tx, number string, balance int64) error {
	query := `UPDATE accounts SET balance = $1 WHERE account_number = $2`
	_, err := tx.ExecContext(ctx, query, balance, number)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	return nil
}

// Delete removes the account row only. Ledger entries referencing the
// account are kept as history.
func (r *accountRepository) Delete(ctx context.Context, number string) error {
	_, err := r.db.db.ExecContext(ctx, `DELETE FROM accounts WHERE account_number = $1`, number)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	return nil
}

func (r *accountRepository) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return r.db.BeginTx(ctx)
}
