package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.uber.org/zap"

	"github.com/rakhadian/banking-ledger/internal/middlewareinternal"
	"github.com/rakhadian/banking-ledger/internal/service"
)

type BankingController struct {
	accountService service.AccountService
	logger         *zap.Logger
}

func NewBankingController(accountService service.AccountService, logger *zap.Logger) *BankingController {
	return &BankingController{
		accountService: accountService,
		logger:         logger,
	}
}

type openAccountRequest struct {
	Name       string `json:"name" validate:"required"`
	PIN        string `json:"pin" validate:"required,len=6,numeric"`
	PINConfirm string `json:"pin_confirm" validate:"required,eqfield=PIN"`
}

type closeAccountRequest struct {
	PIN string `json:"pin" validate:"required"`
}

type accountLoginRequest struct {
	AccountNumber string `json:"account_number" validate:"required"`
	PIN           string `json:"pin" validate:"required"`
}

func (c *BankingController) Information(w http.ResponseWriter, r *http.Request) {
	userID, ok := middlewareinternal.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	info, err := c.accountService.Information(r.Context(), userID)
	if err != nil {
		writeError(w, r, c.logger, err)
		return
	}

	render.JSON(w, r, info)
}

func (c *BankingController) OpenAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := middlewareinternal.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var request openAccountRequest
	if !decodeAndValidate(w, r, &request) {
		return
	}

	account, err := c.accountService.Open(r.Context(), userID, request.Name, request.PIN)
	if err != nil {
		c.logger.Warn("Failed to open account",
			zap.Int64("user_id", userID),
			zap.Error(err))
		writeError(w, r, c.logger, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, account)
}

func (c *BankingController) CloseAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := middlewareinternal.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var request closeAccountRequest
	if !decodeAndValidate(w, r, &request) {
		return
	}

	accountNumber := chi.URLParam(r, "accountNumber")
	if err := c.accountService.Close(r.Context(), userID, accountNumber, request.PIN); err != nil {
		c.logger.Warn("Failed to close account",
			zap.Int64("user_id", userID),
			zap.String("account", accountNumber),
			zap.Error(err))
		writeError(w, r, c.logger, err)
		return
	}

	render.JSON(w, r, map[string]string{"account_number": accountNumber})
}

func (c *BankingController) AccountLogin(w http.ResponseWriter, r *http.Request) {
	userID, ok := middlewareinternal.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var request accountLoginRequest
	if !decodeAndValidate(w, r, &request) {
		return
	}

	token, err := c.accountService.Login(r.Context(), userID, request.AccountNumber, request.PIN)
	if err != nil {
		c.logger.Warn("Account login failed",
			zap.Int64("user_id", userID),
			zap.String("account", request.AccountNumber),
			zap.Error(err))
		writeError(w, r, c.logger, err)
		return
	}

	render.JSON(w, r, map[string]string{
		"account_number": request.AccountNumber,
		"token":          token,
	})
}

func (c *BankingController) GetAllAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := c.accountService.GetAllAccounts(r.Context())
	if err != nil {
		writeError(w, r, c.logger, err)
		return
	}

	render.JSON(w, r, accounts)
}
