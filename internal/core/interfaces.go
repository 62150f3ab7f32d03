package core

import (
	"context"

	"github.com/rakhadian/banking-ledger/internal/model"
)

type (
	// AccountFinder is the slice of the account repository the banking
	// middleware needs to confirm a token's account still exists.
	AccountFinder interface {
		GetByNumber(ctx context.Context, number string) (*model.Account, error)
	}

	AdminChecker interface {
		IsAdmin(ctx context.Context, userID int64) (bool, error)
	}
)
