package controller

import (
	"net/http"

	"github.com/go-chi/render"
	"go.uber.org/zap"

	"github.com/rakhadian/banking-ledger/internal/service"
)

type AuthController struct {
	authService service.AuthService
	logger      *zap.Logger
}

func NewAuthController(authService service.AuthService, logger *zap.Logger) *AuthController {
	return &AuthController{
		authService: authService,
		logger:      logger,
	}
}

type registerRequest struct {
	Name            string `json:"name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=6"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	UserID int64  `json:"user_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Token  string `json:"token"`
}

func (c *AuthController) Register(w http.ResponseWriter, r *http.Request) {
	var request registerRequest
	if !decodeAndValidate(w, r, &request) {
		return
	}

	user, token, err := c.authService.Register(r.Context(), request.Name, request.Email, request.Password)
	if err != nil {
		c.logger.Warn("Registration failed",
			zap.String("email", request.Email),
			zap.Error(err))
		writeError(w, r, c.logger, err)
		return
	}

	c.logger.Info("User registered",
		zap.Int64("user_id", user.ID),
		zap.String("email", user.Email))

	render.JSON(w, r, loginResponse{
		UserID: user.ID,
		Name:   user.Name,
		Email:  user.Email,
		Token:  token,
	})
}

func (c *AuthController) Login(w http.ResponseWriter, r *http.Request) {
	var request loginRequest
	if !decodeAndValidate(w, r, &request) {
		return
	}

	user, token, err := c.authService.Login(r.Context(), request.Email, request.Password)
	if err != nil {
		c.logger.Warn("Login failed",
			zap.String("email", request.Email),
			zap.Error(err))
		writeError(w, r, c.logger, err)
		return
	}

	c.logger.Info("User logged in",
		zap.Int64("user_id", user.ID),
		zap.String("email", user.Email))

	render.JSON(w, r, loginResponse{
		UserID: user.ID,
		Name:   user.Name,
		Email:  user.Email,
		Token:  token,
	})
}
