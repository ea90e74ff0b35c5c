package services

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/jmdto/linkshort/internal/auth"
	"github.com/jmdto/linkshort/internal/models"
	"github.com/jmdto/linkshort/internal/repository"
	"github.com/jmdto/linkshort/pkg/logger"
)

// UserService manages authentication and user administration.
type UserService struct {
	repo   repository.UserRepository
	tokens *auth.TokenManager
	log    *logger.Logger
}

// NewUserService creates a UserService.
func NewUserService(repo repository.UserRepository, tokens *auth.TokenManager, log *logger.Logger) *UserService {
	return &UserService{repo: repo, tokens: tokens, log: log}
}

// Login verifies credentials and returns a session token with the user.
// Unknown emails and wrong passwords both yield ErrInvalidCredentials so
// the response never reveals which part failed.
func (s *UserService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return "", nil, models.ErrInvalidCredentials
		}
		return "", nil, err
	}

	if !auth.CheckPassword(user.PasswordHash, password) {
		return "", nil, models.ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.ID, user.IsAdmin)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// Create registers a new user.
func (s *UserService) Create(ctx context.Context, email, name, password string, isAdmin bool) (*models.User, error) {
	if email == "" || password == "" {
		return nil, models.ErrInvalidCredentials
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	return s.repo.Create(ctx, &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		IsAdmin:      isAdmin,
	})
}

// List returns all users.
func (s *UserService) List(ctx context.Context) ([]models.User, error) {
	return s.repo.List(ctx)
}

// Get returns one user by ID.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	return s.repo.GetByID(ctx, id)
}

// Update applies the non-nil fields of upd to a user.
func (s *UserService) Update(ctx context.Context, id string, upd models.UserUpdate) (*models.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if upd.Email != nil {
		user.Email = *upd.Email
	}
	if upd.Name != nil {
		user.Name = *upd.Name
	}
	if upd.Password != nil {
		hash, err := auth.HashPassword(*upd.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}

	return s.repo.Update(ctx, user)
}

// Delete removes a user; their links and variants cascade.
func (s *UserService) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// ToggleAdmin flips a user's admin flag.
func (s *UserService) ToggleAdmin(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	user.IsAdmin = !user.IsAdmin
	return s.repo.Update(ctx, user)
}
