package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/rakhadian/banking-ledger/internal/apperr"
	"github.com/rakhadian/banking-ledger/internal/model"
	"github.com/rakhadian/banking-ledger/internal/repository"
	"github.com/rakhadian/banking-ledger/internal/util/accnum"
)

var (
	ErrAccountNotOwned = apperr.New(apperr.KindForbidden, "account_not_owned", "account belongs to another user")
	ErrInvalidPIN      = apperr.New(apperr.KindUnauthorized, "invalid_pin", "wrong account pin")
	ErrUserNotFound    = apperr.New(apperr.KindNotFound, "user_not_found", "user not found")
)

// BankingInformation is the profile-plus-accounts view returned to the owner.
type BankingInformation struct {
	UserID   int64            `json:"user_id"`
	Name     string           `json:"name"`
	Email    string           `json:"email"`
	Accounts []*model.Account `json:"accounts"`
}

type AccountService interface {
	Open(ctx context.Context, userID int64, name, pin string) (*model.Account, error)
	Information(ctx context.Context, userID int64) (*BankingInformation, error)
	Close(ctx context.Context, userID int64, accountNumber, pin string) error
	Login(ctx context.Context, userID int64, accountNumber, pin string) (string, error)
	GetAllAccounts(ctx context.Context) ([]*model.Account, error)
}

type accountService struct {
	accountRepo repository.AccountRepository
	userRepo    repository.UserRepository
	tokens      *TokenManager
	logger      *zap.Logger
}

func NewAccountService(
	accountRepo repository.AccountRepository,
	userRepo repository.UserRepository,
	tokens *TokenManager,
	logger *zap.Logger,
) AccountService {
	return &accountService{
		accountRepo: accountRepo,
		userRepo:    userRepo,
		tokens:      tokens,
		logger:      logger,
	}
}

func (s *accountService) Open(ctx context.Context, userID int64, name, pin string) (*model.Account, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	pinHash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash pin: %w", err)
	}

	number, err := accnum.Generate(ctx, s.accountRepo.Exists)
	if err != nil {
		return nil, fmt.Errorf("failed to generate account number: %w", err)
	}

	account := &model.Account{
		Number:  number,
		UserID:  userID,
		Name:    name,
		PINHash: string(pinHash),
		Balance: 0,
	}

	if err := s.accountRepo.Create(ctx, account); err != nil {
		return nil, err
	}

	s.logger.Info("Account opened",
		zap.Int64("user_id", userID),
		zap.String("account", account.Number))

	return account, nil
}

func (s *accountService) Information(ctx context.Context, userID int64) (*BankingInformation, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	accounts, err := s.accountRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if accounts == nil {
		accounts = []*model.Account{}
	}

	return &BankingInformation{
		UserID:   user.ID,
		Name:     user.Name,
		Email:    user.Email,
		Accounts: accounts,
	}, nil
}

// Close deletes the account row. Ledger entries are kept, so the account's
// history stays queryable by the admin endpoints.
func (s *accountService) Close(ctx context.Context, userID int64, accountNumber, pin string) error {
	account, err := s.verifyOwnership(ctx, userID, accountNumber, pin)
	if err != nil {
		return err
	}

	if err := s.accountRepo.Delete(ctx, account.Number); err != nil {
		return err
	}

	s.logger.Info("Account closed",
		zap.Int64("user_id", userID),
		zap.String("account", accountNumber))

	return nil
}

// Login issues a banking token scoped to one account after verifying its PIN.
func (s *accountService) Login(ctx context.Context, userID int64, accountNumber, pin string) (string, error) {
	account, err := s.verifyOwnership(ctx, userID, accountNumber, pin)
	if err != nil {
		return "", err
	}

	token, err := s.tokens.IssueBanking(userID, account.Number)
	if err != nil {
		return "", fmt.Errorf("failed to issue banking token: %w", err)
	}
	return token, nil
}

func (s *accountService) verifyOwnership(ctx context.Context, userID int64, accountNumber, pin string) (*model.Account, error) {
	account, err := s.accountRepo.GetByNumber(ctx, accountNumber)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}
	if account.UserID != userID {
		return nil, ErrAccountNotOwned
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PINHash), []byte(pin)); err != nil {
		return nil, ErrInvalidPIN
	}

	return account, nil
}

func (s *accountService) GetAllAccounts(ctx context.Context) ([]*model.Account, error) {
	accounts, err := s.accountRepo.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	if accounts == nil {
		accounts = []*model.Account{}
	}
	return accounts, nil
}
