package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rakhadian/banking-ledger/internal/model"
)

func newRepoForTest(t *testing.T) (*Database, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewDatabaseWithConn(db), mock
}

func TestAccountGetByNumber(t *testing.T) {
	db, mock := newRepoForTest(t)
	repo := NewAccountRepository(db)

	rows := sqlmock.NewRows([]string{"account_number", "user_id", "name", "pin_hash", "balance", "created_at"}).
		AddRow("ACC-0000000001", int64(7), "savings", "hash", int64(250), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta(`FROM accounts WHERE account_number = $1`)).
		WithArgs("ACC-0000000001").
		WillReturnRows(rows)

	account, err := repo.GetByNumber(context.Background(), "ACC-0000000001")
	require.NoError(t, err)
	require.NotNil(t, account)
	assert.Equal(t, int64(250), account.Balance)
	assert.Equal(t, int64(7), account.UserID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountGetByNumberMissing(t *testing.T) {
	db, mock := newRepoForTest(t)
	repo := NewAccountRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM accounts WHERE account_number = $1`)).
		WithArgs("ACC-0000000009").
		WillReturnRows(sqlmock.NewRows([]string{"account_number", "user_id", "name", "pin_hash", "balance", "created_at"}))

	account, err := repo.GetByNumber(context.Background(), "ACC-0000000009")
	require.NoError(t, err)
	assert.Nil(t, account)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountExists(t *testing.T) {
	db, mock := newRepoForTest(t)
	repo := NewAccountRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS`)).
		WithArgs("ACC-0000000001").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.Exists(context.Background(), "ACC-0000000001")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountSetBalanceInsideTx(t *testing.T) {
	db, mock := newRepoForTest(t)
	repo := NewAccountRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE accounts SET balance = $1 WHERE account_number = $2`)).
		WithArgs(int64(300), "ACC-0000000001").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := repo.BeginTx(context.Background())
	require.NoError(t, err)

	require.NoError(t, repo.SetBalance(context.Background(), tx, "ACC-0000000001", 300))
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionGetByAccount(t *testing.T) {
	db, mock := newRepoForTest(t)
	repo := NewTransactionRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "account_number", "kind", "amount", "counterparty", "description", "resulting_balance", "created_at", "seq"}).
		AddRow("id-2", "ACC-0000000001", "withdraw", int64(40), nil, "", int64(60), now, int64(2)).
		AddRow("id-1", "ACC-0000000001", "deposit", int64(100), nil, "", int64(100), now.Add(-time.Minute), int64(1))
	mock.ExpectQuery(`ORDER BY created_at DESC, seq DESC`).
		WithArgs("ACC-0000000001").
		WillReturnRows(rows)

	entries, err := repo.GetByAccount(context.Background(), "ACC-0000000001")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, model.KindWithdraw, entries[0].Kind)
	assert.Equal(t, model.KindDeposit, entries[1].Kind)
	assert.Empty(t, entries[0].Counterparty)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionAppendInsideTx(t *testing.T) {
	db, mock := newRepoForTest(t)
	accountRepo := NewAccountRepository(db)
	repo := NewTransactionRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO transactions`)).
		WillReturnRows(sqlmock.NewRows([]string{"seq"}).AddRow(int64(5)))
	mock.ExpectCommit()

	tx, err := accountRepo.BeginTx(context.Background())
	require.NoError(t, err)

	entry := &model.Transaction{
		ID:               "id-1",
		AccountNumber:    "ACC-0000000001",
		Kind:             model.KindTransferOut,
		Amount:           50,
		Counterparty:     "ACC-0000000002",
		ResultingBalance: 50,
		CreatedAt:        time.Now(),
	}
	require.NoError(t, repo.Append(context.Background(), tx, entry))
	assert.Equal(t, int64(5), entry.Seq)
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}
