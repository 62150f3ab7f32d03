package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/rakhadian/banking-ledger/internal/controller"
	"github.com/rakhadian/banking-ledger/internal/middlewareinternal"
	"github.com/rakhadian/banking-ledger/internal/repository"
	"github.com/rakhadian/banking-ledger/internal/service"
)

type App struct {
	cfg    *Config
	Router *chi.Mux
	db     *repository.Database
	Logger *zap.Logger
	Server *http.Server
}

func New(cfg *Config) (*App, error) {
	app := &App{
		cfg:    cfg,
		Router: chi.NewRouter(),
		Logger: zap.L(),
	}

	if err := app.initDB(); err != nil {
		return nil, err
	}

	app.initRouter()
	return app, nil
}

func (a *App) Run(ctx context.Context) error {
	a.Server = &http.Server{
		Addr:    a.cfg.RunAddress,
		Handler: a.Router,
	}

	go func() {
		a.Logger.Info("Starting HTTP server",
			zap.String("address", a.cfg.RunAddress))
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	a.Logger.Info("Shutting down server...")
	return a.shutdown()
}

func (a *App) initDB() error {
	dbConfig := repository.DatabaseConfig{
		DSN:            a.cfg.DatabaseURI,
		MigrationsPath: a.cfg.MigrationsPath,
	}

	db, err := repository.NewDatabase(dbConfig)
	if err != nil {
		a.Logger.Error("Database initialization failed",
			zap.String("dsn", a.cfg.MaskDBPassword()),
			zap.Error(err))
		return fmt.Errorf("database initialization failed: %w", err)
	}

	a.db = db
	a.Logger.Info("Database initialized successfully",
		zap.String("migrations_path", a.cfg.MigrationsPath))

	return nil
}

func (a *App) initRouter() {
	a.Router.Use(middleware.RequestID)
	a.Router.Use(middleware.RealIP)
	a.Router.Use(middleware.Logger)
	a.Router.Use(middleware.Recoverer)
	a.Router.Use(middleware.Compress(5))

	// Repositories
	userRepo := repository.NewUserRepository(a.db)
	accountRepo := repository.NewAccountRepository(a.db)
	transactionRepo := repository.NewTransactionRepository(a.db)

	// Services
	tokens := service.NewTokenManager(a.cfg.JWTSecretKey, a.cfg.TokenTTL)
	authService := service.NewAuthService(userRepo, tokens,
		a.cfg.MaxLoginAttempts, a.cfg.LockoutWindow, a.cfg.AdminEmail, a.Logger)
	userService := service.NewUserService(userRepo)
	accountService := service.NewAccountService(accountRepo, userRepo, tokens, a.Logger)
	ledgerService := service.NewLedgerService(accountRepo, transactionRepo, a.cfg.QueryTimeout, a.Logger)

	// Controllers
	authController := controller.NewAuthController(authService, a.Logger)
	usersController := controller.NewUsersController(userService, a.Logger)
	bankingController := controller.NewBankingController(accountService, a.Logger)
	transactionsController := controller.NewTransactionsController(ledgerService, a.Logger)

	sessionAuth := middlewareinternal.SessionAuthMiddleware(tokens)
	bankingAuth := middlewareinternal.BankingAuthMiddleware(tokens, accountRepo)
	adminAuth := middlewareinternal.AdminAuthMiddleware(tokens, authService)

	// Public routes
	a.Router.Post("/api/users", authController.Register)
	a.Router.Post("/api/login", authController.Login)

	// Session-protected routes
	a.Router.Group(func(r chi.Router) {
		r.Use(sessionAuth)

		r.Get("/api/users", usersController.List)
		r.Get("/api/users/{id}", usersController.Get)
		r.Put("/api/users/{id}", usersController.Update)
		r.Delete("/api/users/{id}", usersController.Delete)
		r.Post("/api/users/{id}/password", usersController.ChangePassword)

		r.Get("/api/banking", bankingController.Information)
		r.Post("/api/banking", bankingController.OpenAccount)
		r.Delete("/api/banking/{accountNumber}", bankingController.CloseAccount)
		r.Post("/api/banking/login", bankingController.AccountLogin)
	})

	// Banking-token routes
	a.Router.Group(func(r chi.Router) {
		r.Use(bankingAuth)

		r.Post("/api/banking/transactions/deposit", transactionsController.Deposit)
		r.Post("/api/banking/transactions/withdraw", transactionsController.Withdraw)
		r.Post("/api/banking/transactions/transfer", transactionsController.Transfer)
		r.Get("/api/banking/transactions/history", transactionsController.History)
	})

	// Admin routes
	a.Router.Group(func(r chi.Router) {
		r.Use(adminAuth)

		r.Get("/api/banking/admin/accounts", bankingController.GetAllAccounts)
		r.Get("/api/banking/admin/transactions", transactionsController.GetAllTransactions)
	})
}

func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	defer a.db.Close()
	return a.Server.Shutdown(ctx)
}
