package service

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/rakhadian/banking-ledger/internal/apperr"
)

var (
	ErrInvalidToken = apperr.New(apperr.KindUnauthorized, "invalid_token", "invalid token")
	ErrTokenExpired = apperr.New(apperr.KindUnauthorized, "token_expired", "token expired")
)

// SessionClaims identify a logged-in user.
type SessionClaims struct {
	UserID int64
	Email  string
}

// BankingClaims identify a user acting on one of their accounts. Ledger
// mutations require a banking token, not just a session token.
type BankingClaims struct {
	UserID        int64
	AccountNumber string
}

// TokenManager signs and verifies both token types with a shared HS256 key.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), ttl: ttl}
}

func (m *TokenManager) IssueSession(userID int64, email string) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"email":   email,
		"exp":     time.Now().Add(m.ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

func (m *TokenManager) IssueBanking(userID int64, accountNumber string) (string, error) {
	claims := jwt.MapClaims{
		"user_id":        userID,
		"account_number": accountNumber,
		"exp":            time.Now().Add(m.ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

func (m *TokenManager) ParseSession(tokenString string) (*SessionClaims, error) {
	claims, err := m.parse(tokenString)
	if err != nil {
		return nil, err
	}

	userID, okID := claims["user_id"].(float64)
	email, okEmail := claims["email"].(string)
	if !okID || !okEmail {
		return nil, ErrInvalidToken
	}

	return &SessionClaims{UserID: int64(userID), Email: email}, nil
}

func (m *TokenManager) ParseBanking(tokenString string) (*BankingClaims, error) {
	claims, err := m.parse(tokenString)
	if err != nil {
		return nil, err
	}

	userID, okID := claims["user_id"].(float64)
	accountNumber, okAcc := claims["account_number"].(string)
	if !okID || !okAcc {
		return nil, ErrInvalidToken
	}

	return &BankingClaims{UserID: int64(userID), AccountNumber: accountNumber}, nil
}

func (m *TokenManager) parse(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
