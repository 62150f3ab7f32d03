package service

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/rakhadian/banking-ledger/internal/apperr"
	"github.com/rakhadian/banking-ledger/internal/model"
	"github.com/rakhadian/banking-ledger/internal/repository"
)

var (
	ErrAccountNotFound   = apperr.New(apperr.KindNotFound, "account_not_found", "account not found")
	ErrInvalidAmount     = apperr.New(apperr.KindValidation, "invalid_amount", "amount must be a positive integer")
	ErrInsufficientFunds = apperr.New(apperr.KindForbidden, "insufficient_funds", "insufficient funds")
	ErrSameAccount       = apperr.New(apperr.KindValidation, "same_account", "source and destination accounts are the same")
	ErrStoreUnavailable  = apperr.New(apperr.KindUnavailable, "store_unavailable", "storage is temporarily unavailable")
)

type LedgerService interface {
	Deposit(ctx context.Context, accountNumber string, amount int64, description string) (*model.Transaction, error)
	Withdraw(ctx context.Context, accountNumber string, amount int64, description string) (*model.Transaction, error)
	Transfer(ctx context.Context, sourceAccount, destAccount string, amount int64, description string) (*model.Transaction, error)
	History(ctx context.Context, accountNumber string) ([]*model.Transaction, error)
	AllTransactions(ctx context.Context) ([]*model.Transaction, error)
}

// ledgerService applies every balance mutation as a single database
// transaction: the locked read, the balance update and the log append commit
// or roll back together, so no partial operation is ever observable.
type ledgerService struct {
	accountRepo repository.AccountRepository
	txRepo      repository.TransactionRepository
	timeout     time.Duration
	logger      *zap.Logger
	now         func() time.Time
}

func NewLedgerService(
	accountRepo repository.AccountRepository,
	txRepo repository.TransactionRepository,
	timeout time.Duration,
	logger *zap.Logger,
) LedgerService {
	return &ledgerService{
		accountRepo: accountRepo,
		txRepo:      txRepo,
		timeout:     timeout,
		logger:      logger,
		now:         time.Now,
	}
}

func (s *ledgerService) Deposit(ctx context.Context, accountNumber string, amount int64, description string) (*model.Transaction, error) {
	return s.mutate(ctx, accountNumber, amount, model.KindDeposit, description)
}

func (s *ledgerService) Withdraw(ctx context.Context, accountNumber string, amount int64, description string) (*model.Transaction, error) {
	return s.mutate(ctx, accountNumber, amount, model.KindWithdraw, description)
}

func (s *ledgerService) mutate(ctx context.Context, accountNumber string, amount int64, kind model.TransactionKind, description string) (*model.Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tx, err := s.accountRepo.BeginTx(ctx)
	if err != nil {
		return nil, storeErr("failed to begin transaction", err)
	}
	defer tx.Rollback()

	account, err := s.accountRepo.GetByNumberForUpdate(ctx, tx, accountNumber)
	if err != nil {
		return nil, storeErr("failed to lock account", err)
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}

	newBalance := account.Balance + amount
	if kind == model.KindWithdraw {
		if account.Balance < amount {
			return nil, ErrInsufficientFunds
		}
		newBalance = account.Balance - amount
	}

	if err := s.accountRepo.SetBalance(ctx, tx, accountNumber, newBalance); err != nil {
		return nil, storeErr("failed to update balance", err)
	}

	entry := &model.Transaction{
		ID:               uuid.NewString(),
		AccountNumber:    accountNumber,
		Kind:             kind,
		Amount:           amount,
		Description:      description,
		ResultingBalance: newBalance,
		CreatedAt:        s.now().UTC(),
	}
	if err := s.txRepo.Append(ctx, tx, entry); err != nil {
		return nil, storeErr("failed to append entry", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, storeErr("failed to commit", err)
	}

	s.logger.Info("Ledger entry recorded",
		zap.String("account", accountNumber),
		zap.String("kind", string(kind)),
		zap.Int64("amount", amount),
		zap.Int64("resulting_balance", newBalance))

	return entry, nil
}

// Transfer debits the source and credits the destination in one transaction.
// Both rows are locked in ascending account-number order so two opposing
// transfers cannot deadlock.
func (s *ledgerService) Transfer(ctx context.Context, sourceAccount, destAccount string, amount int64, description string) (*model.Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if sourceAccount == destAccount {
		return nil, ErrSameAccount
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tx, err := s.accountRepo.BeginTx(ctx)
	if err != nil {
		return nil, storeErr("failed to begin transaction", err)
	}
	defer tx.Rollback()

	first, second := sourceAccount, destAccount
	if second < first {
		first, second = second, first
	}

	locked := make(map[string]*model.Account, 2)
	for _, number := range []string{first, second} {
		account, err := s.accountRepo.GetByNumberForUpdate(ctx, tx, number)
		if err != nil {
			return nil, storeErr("failed to lock account", err)
		}
		if account == nil {
			return nil, ErrAccountNotFound
		}
		locked[number] = account
	}

	source := locked[sourceAccount]
	dest := locked[destAccount]

	if source.Balance < amount {
		return nil, ErrInsufficientFunds
	}

	sourceBalance := source.Balance - amount
	destBalance := dest.Balance + amount

	if err := s.accountRepo.SetBalance(ctx, tx, sourceAccount, sourceBalance); err != nil {
		return nil, storeErr("failed to debit source", err)
	}
	if err := s.accountRepo.SetBalance(ctx, tx, destAccount, destBalance); err != nil {
		return nil, storeErr("failed to credit destination", err)
	}

	timestamp := s.now().UTC()
	outEntry := &model.Transaction{
		ID:               uuid.NewString(),
		AccountNumber:    sourceAccount,
		Kind:             model.KindTransferOut,
		Amount:           amount,
		Counterparty:     destAccount,
		Description:      description,
		ResultingBalance: sourceBalance,
		CreatedAt:        timestamp,
	}
	inEntry := &model.Transaction{
		ID:               uuid.NewString(),
		AccountNumber:    destAccount,
		Kind:             model.KindTransferIn,
		Amount:           amount,
		Counterparty:     sourceAccount,
		Description:      description,
		ResultingBalance: destBalance,
		CreatedAt:        timestamp,
	}

	if err := s.txRepo.Append(ctx, tx, outEntry); err != nil {
		return nil, storeErr("failed to append transfer-out entry", err)
	}
	if err := s.txRepo.Append(ctx, tx, inEntry); err != nil {
		return nil, storeErr("failed to append transfer-in entry", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, storeErr("failed to commit", err)
	}

	s.logger.Info("Transfer completed",
		zap.String("source", sourceAccount),
		zap.String("destination", destAccount),
		zap.Int64("amount", amount))

	return outEntry, nil
}

func (s *ledgerService) History(ctx context.Context, accountNumber string) ([]*model.Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	account, err := s.accountRepo.GetByNumber(ctx, accountNumber)
	if err != nil {
		return nil, storeErr("failed to get account", err)
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}

	entries, err := s.txRepo.GetByAccount(ctx, accountNumber)
	if err != nil {
		return nil, storeErr("failed to get history", err)
	}
	if entries == nil {
		entries = []*model.Transaction{}
	}
	return entries, nil
}

// AllTransactions backs the admin listing; it is not scoped to an account.
func (s *ledgerService) AllTransactions(ctx context.Context) ([]*model.Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	entries, err := s.txRepo.GetAll(ctx)
	if err != nil {
		return nil, storeErr("failed to list transactions", err)
	}
	if entries == nil {
		entries = []*model.Transaction{}
	}
	return entries, nil
}

// storeErr folds timeouts, dead connections and network failures into the
// transient ErrStoreUnavailable class. Class 08 is PostgreSQL's connection
// exception family.
func storeErr(msg string, err error) error {
	var pqErr *pq.Error
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, sql.ErrConnDone),
		errors.Is(err, driver.ErrBadConn),
		errors.As(err, &netErr),
		errors.As(err, &pqErr) && pqErr.Code.Class() == "08":
		return fmt.Errorf("%s: %w", msg, ErrStoreUnavailable)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
