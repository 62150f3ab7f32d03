package controller

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.uber.org/zap"

	"github.com/rakhadian/banking-ledger/internal/service"
)

type UsersController struct {
	userService service.UserService
	logger      *zap.Logger
}

func NewUsersController(userService service.UserService, logger *zap.Logger) *UsersController {
	return &UsersController{
		userService: userService,
		logger:      logger,
	}
}

type updateUserRequest struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
}

type changePasswordRequest struct {
	PasswordOld     string `json:"password_old" validate:"required"`
	PasswordNew     string `json:"password_new" validate:"required,min=6"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=PasswordNew"`
}

func (c *UsersController) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	pageNumber, _ := strconv.Atoi(query.Get("page_number"))
	pageSize, _ := strconv.Atoi(query.Get("page_size"))

	page, err := c.userService.List(r.Context(), service.ListUsersParams{
		PageNumber: pageNumber,
		PageSize:   pageSize,
		Search:     query.Get("search"),
		Sort:       query.Get("sort"),
	})
	if err != nil {
		writeError(w, r, c.logger, err)
		return
	}

	render.JSON(w, r, page)
}

func (c *UsersController) Get(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		http.Error(w, "Invalid user id", http.StatusBadRequest)
		return
	}

	user, err := c.userService.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, c.logger, err)
		return
	}

	render.JSON(w, r, user)
}

func (c *UsersController) Update(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		http.Error(w, "Invalid user id", http.StatusBadRequest)
		return
	}

	var request updateUserRequest
	if !decodeAndValidate(w, r, &request) {
		return
	}

	if err := c.userService.Update(r.Context(), id, request.Name, request.Email); err != nil {
		c.logger.Warn("Failed to update user",
			zap.Int64("user_id", id),
			zap.Error(err))
		writeError(w, r, c.logger, err)
		return
	}

	render.JSON(w, r, map[string]int64{"id": id})
}

func (c *UsersController) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		http.Error(w, "Invalid user id", http.StatusBadRequest)
		return
	}

	if err := c.userService.Delete(r.Context(), id); err != nil {
		writeError(w, r, c.logger, err)
		return
	}

	render.JSON(w, r, map[string]int64{"id": id})
}

func (c *UsersController) ChangePassword(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		http.Error(w, "Invalid user id", http.StatusBadRequest)
		return
	}

	var request changePasswordRequest
	if !decodeAndValidate(w, r, &request) {
		return
	}

	if err := c.userService.ChangePassword(r.Context(), id, request.PasswordOld, request.PasswordNew); err != nil {
		c.logger.Warn("Failed to change password",
			zap.Int64("user_id", id),
			zap.Error(err))
		writeError(w, r, c.logger, err)
		return
	}

	render.JSON(w, r, map[string]int64{"id": id})
}

func userID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
