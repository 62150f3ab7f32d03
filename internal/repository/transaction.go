package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rakhadian/banking-ledger/internal/model"
)

type TransactionRepository interface {
	Append(ctx context.Context, tx *sql.Tx, entry *model.Transaction) error
	GetByAccount(ctx context.Context, accountNumber string) ([]*model.Transaction, error)
	GetAll(ctx context.Context) ([]*model.Transaction, error)
}

type transactionRepository struct {
	db *Database
}

func NewTransactionRepository(db *Database) TransactionRepository {
	return &transactionRepository{db: db}
}

// Append inserts an entry within tx so the append commits or rolls back
// together with the balance mutation it records.
func (r *transactionRepository) Append(ctx context.Context, tx *sql.Tx, entry *model.Transaction) error {
	query := `INSERT INTO transactions (id, account_number, kind, amount, counterparty, description, resulting_balance, created_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING seq`
	err := tx.QueryRowContext(ctx, query,
		entry.ID,
		entry.AccountNumber,
		string(entry.Kind),
		entry.Amount,
		nullString(entry.Counterparty),
		entry.Description,
		entry.ResultingBalance,
		entry.CreatedAt,
	).Scan(&entry.Seq)
	if err != nil {
		return fmt.Errorf("failed to append transaction: %w", err)
	}
	return nil
}

// GetByAccount returns the account's entries newest first; entries with the
// same timestamp come back in reverse insertion order.
func (r *transactionRepository) GetByAccount(ctx context.Context, accountNumber string) ([]*model.Transaction, error) {
	query := `SELECT id, account_number, kind, amount, counterparty, description, resulting_balance, created_at, seq
              FROM transactions
              WHERE account_number = $1
              ORDER BY created_at DESC, seq DESC`
	rows, err := r.db.db.QueryContext(ctx, query, accountNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

func (r *transactionRepository) GetAll(ctx context.Context) ([]*model.Transaction, error) {
	query := `SELECT id, account_number, kind, amount, counterparty, description, resulting_balance, created_at, seq
              FROM transactions
              ORDER BY created_at DESC, seq DESC`
	rows, err := r.db.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

func scanTransactions(rows *sql.Rows) ([]*model.Transaction, error) {
	var entries []*model.Transaction
	for rows.Next() {
		var entry model.Transaction
		var kind string
		var counterparty sql.NullString
		if err := rows.Scan(
			&entry.ID,
			&entry.AccountNumber,
			&kind,
			&entry.Amount,
			&counterparty,
			&entry.Description,
			&entry.ResultingBalance,
			&entry.CreatedAt,
			&entry.Seq,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		entry.Kind = model.TransactionKind(kind)
		if counterparty.Valid {
			entry.Counterparty = counterparty.String
		}
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
