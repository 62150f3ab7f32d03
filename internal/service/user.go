package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/rakhadian/banking-ledger/internal/model"
	"github.com/rakhadian/banking-ledger/internal/repository"
)

type UserService interface {
	List(ctx context.Context, params ListUsersParams) (*UserPage, error)
	Get(ctx context.Context, id int64) (*model.User, error)
	Update(ctx context.Context, id int64, name, email string) error
	Delete(ctx context.Context, id int64) error
	ChangePassword(ctx context.Context, id int64, oldPassword, newPassword string) error
}

// ListUsersParams mirror the list query parameters. Search and Sort use the
// "field:value" form and only the name and email fields are recognized.
type ListUsersParams struct {
	PageNumber int
	PageSize   int
	Search     string
	Sort       string
}

type UserPage struct {
	PageNumber      int           `json:"page_number"`
	PageSize        int           `json:"page_size"`
	Count           int           `json:"count"`
	TotalPages      int           `json:"total_pages"`
	HasPreviousPage bool          `json:"has_previous_page"`
	HasNextPage     bool          `json:"has_next_page"`
	Data            []*model.User `json:"data"`
}

type userService struct {
	userRepo repository.UserRepository
}

func NewUserService(userRepo repository.UserRepository) UserService {
	return &userService{userRepo: userRepo}
}

func (s *userService) List(ctx context.Context, params ListUsersParams) (*UserPage, error) {
	users, err := s.userRepo.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	users = filterUsers(users, params.Search)
	sortUsers(users, params.Sort)

	count := len(users)

	pageNumber := params.PageNumber
	pageSize := params.PageSize
	if pageNumber <= 0 {
		pageNumber = 1
		pageSize = 0
	}

	limit := pageSize
	if limit <= 0 {
		limit = count
	}

	totalPages := 0
	if limit > 0 {
		totalPages = (count + limit - 1) / limit
	}

	start := (pageNumber - 1) * limit
	if start > count {
		start = count
	}
	end := start + limit
	if end > count {
		end = count
	}

	page := users[start:end]
	if page == nil {
		page = []*model.User{}
	}

	return &UserPage{
		PageNumber:      pageNumber,
		PageSize:        len(page),
		Count:           count,
		TotalPages:      totalPages,
		HasPreviousPage: pageNumber > 1,
		HasNextPage:     pageNumber < totalPages,
		Data:            page,
	}, nil
}

func filterUsers(users []*model.User, search string) []*model.User {
	field, key, ok := strings.Cut(search, ":")
	if !ok || (field != "name" && field != "email") {
		return users
	}

	filtered := make([]*model.User, 0, len(users))
	for _, user := range users {
		value := user.Name
		if field == "email" {
			value = user.Email
		}
		if strings.Contains(value, key) {
			filtered = append(filtered, user)
		}
	}
	return filtered
}

func sortUsers(users []*model.User, sortParam string) {
	field, order, _ := strings.Cut(sortParam, ":")
	if field != "name" && field != "email" {
		field = "email"
	}
	if order != "asc" && order != "desc" {
		order = "asc"
	}

	sort.SliceStable(users, func(i, j int) bool {
		x, y := users[i].Email, users[j].Email
		if field == "name" {
			x, y = users[i].Name, users[j].Name
		}
		x, y = strings.ToLower(x), strings.ToLower(y)
		if order == "asc" {
			return x < y
		}
		return x > y
	})
}

func (s *userService) Get(ctx context.Context, id int64) (*model.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *userService) Update(ctx context.Context, id int64, name, email string) error {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}

	if email != user.Email {
		existing, err := s.userRepo.GetByEmail(ctx, email)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrEmailTaken
		}
	}

	return s.userRepo.Update(ctx, id, name, email)
}

func (s *userService) Delete(ctx context.Context, id int64) error {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}
	return s.userRepo.Delete(ctx, id)
}

func (s *userService) ChangePassword(ctx context.Context, id int64, oldPassword, newPassword string) error {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)); err != nil {
		return ErrInvalidCredentials
	}

	newHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	return s.userRepo.UpdatePassword(ctx, id, string(newHash))
}
