package middlewareinternal

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/rakhadian/banking-ledger/internal/core"
	"github.com/rakhadian/banking-ledger/internal/service"
	"github.com/rakhadian/banking-ledger/internal/types"
	"github.com/rakhadian/banking-ledger/internal/util/logger"
)

// SessionAuthMiddleware requires a valid session token and puts the user's
// identity into the request context.
func SessionAuthMiddleware(tokens *service.TokenManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := extractToken(r)
			if err != nil {
				logger.Log.Debug("Failed to extract token",
					zap.String("path", r.URL.Path),
					zap.Error(err))
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := tokens.ParseSession(tokenString)
			if err != nil {
				logger.Log.Warn("Invalid session token",
					zap.String("path", r.URL.Path),
					zap.Error(err))
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), types.UserIDKey, claims.UserID)
			ctx = context.WithValue(ctx, types.UserEmailKey, claims.Email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BankingAuthMiddleware requires a banking token and rejects tokens whose
// account no longer exists.
func BankingAuthMiddleware(tokens *service.TokenManager, accounts core.AccountFinder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := extractToken(r)
			if err != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := tokens.ParseBanking(tokenString)
			if err != nil {
				logger.Log.Warn("Invalid banking token",
					zap.String("path", r.URL.Path),
					zap.Error(err))
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			account, err := accounts.GetByNumber(r.Context(), claims.AccountNumber)
			if err != nil {
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}
			if account == nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), types.UserIDKey, claims.UserID)
			ctx = context.WithValue(ctx, types.AccountNumberKey, claims.AccountNumber)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminAuthMiddleware allows only the configured admin user through.
func AdminAuthMiddleware(tokens *service.TokenManager, admins core.AdminChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := extractToken(r)
			if err != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := tokens.ParseSession(tokenString)
			if err != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			isAdmin, err := admins.IsAdmin(r.Context(), claims.UserID)
			if err != nil {
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}
			if !isAdmin {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), types.UserIDKey, claims.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func extractToken(r *http.Request) (string, error) {
	cookie, err := r.Cookie("jwt")
	if err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", http.ErrNoCookie
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", http.ErrNoCookie
	}

	return parts[1], nil
}

func GetUserIDFromContext(ctx context.Context) (int64, bool) {
	userID, ok := ctx.Value(types.UserIDKey).(int64)
	return userID, ok
}

func GetAccountNumberFromContext(ctx context.Context) (string, bool) {
	number, ok := ctx.Value(types.AccountNumberKey).(string)
	return number, ok
}
