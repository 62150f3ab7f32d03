package controller

import (
	"net/http"

	"github.com/go-chi/render"
	"go.uber.org/zap"

	"github.com/rakhadian/banking-ledger/internal/middlewareinternal"
	"github.com/rakhadian/banking-ledger/internal/service"
)

type TransactionsController struct {
	ledger service.LedgerService
	logger *zap.Logger
}

func NewTransactionsController(ledger service.LedgerService, logger *zap.Logger) *TransactionsController {
	return &TransactionsController{
		ledger: ledger,
		logger: logger,
	}
}

type depositRequest struct {
	Amount      int64  `json:"amount" validate:"required,gt=0"`
	Description string `json:"description"`
}

type withdrawRequest struct {
	Amount      int64  `json:"amount" validate:"required,gt=0"`
	Description string `json:"description"`
}

type transferRequest struct {
	RecipientAccount string `json:"recipient_account" validate:"required"`
	Amount           int64  `json:"amount" validate:"required,gt=0"`
	Description      string `json:"description"`
}

func (c *TransactionsController) Deposit(w http.ResponseWriter, r *http.Request) {
	accountNumber, ok := middlewareinternal.GetAccountNumberFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var request depositRequest
	if !decodeAndValidate(w, r, &request) {
		return
	}

	entry, err := c.ledger.Deposit(r.Context(), accountNumber, request.Amount, request.Description)
	if err != nil {
		c.logger.Warn("Deposit failed",
			zap.String("account", accountNumber),
			zap.Error(err))
		writeError(w, r, c.logger, err)
		return
	}

	render.JSON(w, r, entry)
}

func (c *TransactionsController) Withdraw(w http.ResponseWriter, r *http.Request) {
	accountNumber, ok := middlewareinternal.GetAccountNumberFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var request withdrawRequest
	if !decodeAndValidate(w, r, &request) {
		return
	}

	entry, err := c.ledger.Withdraw(r.Context(), accountNumber, request.Amount, request.Description)
	if err != nil {
		c.logger.Warn("Withdrawal failed",
			zap.String("account", accountNumber),
			zap.Error(err))
		writeError(w, r, c.logger, err)
		return
	}

	render.JSON(w, r, entry)
}

func (c *TransactionsController) Transfer(w http.ResponseWriter, r *http.Request) {
	accountNumber, ok := middlewareinternal.GetAccountNumberFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var request transferRequest
	if !decodeAndValidate(w, r, &request) {
		return
	}

	entry, err := c.ledger.Transfer(r.Context(), accountNumber, request.RecipientAccount, request.Amount, request.Description)
	if err != nil {
		c.logger.Warn("Transfer failed",
			zap.String("source", accountNumber),
			zap.String("destination", request.RecipientAccount),
			zap.Error(err))
		writeError(w, r, c.logger, err)
		return
	}

	render.JSON(w, r, entry)
}

func (c *TransactionsController) History(w http.ResponseWriter, r *http.Request) {
	accountNumber, ok := middlewareinternal.GetAccountNumberFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	entries, err := c.ledger.History(r.Context(), accountNumber)
	if err != nil {
		writeError(w, r, c.logger, err)
		return
	}

	render.JSON(w, r, entries)
}

func (c *TransactionsController) GetAllTransactions(w http.ResponseWriter, r *http.Request) {
	entries, err := c.ledger.AllTransactions(r.Context())
	if err != nil {
		writeError(w, r, c.logger, err)
		return
	}

	render.JSON(w, r, entries)
}
