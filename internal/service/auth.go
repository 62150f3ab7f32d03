package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/rakhadian/banking-ledger/internal/apperr"
	"github.com/rakhadian/banking-ledger/internal/model"
	"github.com/rakhadian/banking-ledger/internal/repository"
)

var (
	ErrEmailTaken         = apperr.New(apperr.KindConflict, "email_taken", "email is already registered")
	ErrUnknownIdentity    = apperr.New(apperr.KindNotFound, "unknown_identity", "email is not registered")
	ErrInvalidCredentials = apperr.New(apperr.KindUnauthorized, "invalid_credentials", "wrong email or password")
	ErrTooManyAttempts    = apperr.New(apperr.KindForbidden, "too_many_attempts", "too many failed login attempts")
)

type AuthService interface {
	Register(ctx context.Context, name, email, password string) (*model.User, string, error)
	Login(ctx context.Context, email, password string) (*model.User, string, error)
	IsAdmin(ctx context.Context, userID int64) (bool, error)
}

type authService struct {
	userRepo    repository.UserRepository
	tokens      *TokenManager
	logger      *zap.Logger
	maxAttempts int
	lockoutTTL  time.Duration
	adminEmail  string
	dummyHash   []byte
	now         func() time.Time
}

func NewAuthService(
	userRepo repository.UserRepository,
	tokens *TokenManager,
	maxAttempts int,
	lockoutTTL time.Duration,
	adminEmail string,
	logger *zap.Logger,
) AuthService {
	// Hashed once so failed lookups still pay the bcrypt cost below.
	dummyHash, err := bcrypt.GenerateFromPassword([]byte("banking-ledger-filler"), bcrypt.DefaultCost)
	if err != nil {
		panic(fmt.Sprintf("failed to hash filler password: %v", err))
	}

	return &authService{
		userRepo:    userRepo,
		tokens:      tokens,
		logger:      logger,
		maxAttempts: maxAttempts,
		lockoutTTL:  lockoutTTL,
		adminEmail:  adminEmail,
		dummyHash:   dummyHash,
		now:         time.Now,
	}
}

func (s *authService) Register(ctx context.Context, name, email, password string) (*model.User, string, error) {
	existingUser, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, "", fmt.Errorf("failed to check email: %w", err)
	}
	if existingUser != nil {
		return nil, "", ErrEmailTaken
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hashedPassword),
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, "", err
	}

	token, err := s.tokens.IssueSession(user.ID, user.Email)
	if err != nil {
		return nil, "", fmt.Errorf("failed to issue token: %w", err)
	}

	return user, token, nil
}

// Login runs the lockout state machine: a cooldown that has elapsed clears
// the counter, a locked user is rejected before any credential check, and
// the bcrypt comparison always runs so response timing does not reveal
// whether the email is registered.
func (s *authService) Login(ctx context.Context, email, password string) (*model.User, string, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, "", fmt.Errorf("failed to get user: %w", err)
	}

	if user != nil && user.FailedLoginCount > 0 && user.LastFailedLoginAt != nil &&
		s.now().Sub(*user.LastFailedLoginAt) > s.lockoutTTL {
		if err := s.userRepo.ResetLoginFailures(ctx, user.ID); err != nil {
			return nil, "", fmt.Errorf("failed to reset login failures: %w", err)
		}
		user.FailedLoginCount = 0
	}

	if user != nil && user.FailedLoginCount >= s.maxAttempts {
		s.logger.Warn("Login rejected: user locked out",
			zap.String("email", email),
			zap.Int("failed_attempts", user.FailedLoginCount))
		return nil, "", ErrTooManyAttempts
	}

	hash := s.dummyHash
	if user != nil {
		hash = []byte(user.PasswordHash)
	}
	passwordMatched := bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil

	if user == nil {
		return nil, "", ErrUnknownIdentity
	}

	if !passwordMatched {
		if err := s.userRepo.RecordLoginFailure(ctx, user.ID); err != nil {
			s.logger.Error("Failed to record login failure",
				zap.Int64("user_id", user.ID),
				zap.Error(err))
		}
		return nil, "", ErrInvalidCredentials
	}

	if user.FailedLoginCount > 0 {
		if err := s.userRepo.ResetLoginFailures(ctx, user.ID); err != nil {
			s.logger.Error("Failed to reset login failures",
				zap.Int64("user_id", user.ID),
				zap.Error(err))
		}
	}

	token, err := s.tokens.IssueSession(user.ID, user.Email)
	if err != nil {
		return nil, "", fmt.Errorf("failed to issue token: %w", err)
	}

	return user, token, nil
}

func (s *authService) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return false, nil
	}
	return user.Email == s.adminEmail, nil
}
