package service

import (
	"context"
	"ctchen222/blog/internal/api/models"
	"ctchen222/blog/internal/api/repository"
	"ctchen222/blog/internal/auth"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/crypto/bcrypt"
)

var meter = otel.Meter("api.service")

var (
	ErrUsernameTaken    = errors.New("username already taken")
	ErrWrongCredentials = errors.New("wrong credentials")
)

// TokenManager issues, verifies and revokes auth tokens.
type TokenManager interface {
	Issue(user *models.User) (string, error)
	Verify(ctx context.Context, token string) (*auth.Claims, error)
	Revoke(ctx context.Context, claims *auth.Claims) error
}

// UserService defines the interface for user-related business logic.
type UserService interface {
	Register(ctx context.Context, req *models.RegisterRequest) (*models.User, error)
	// Login returns the user and a signed token for it.
	Login(ctx context.Context, req *models.LoginRequest) (*models.User, string, error)
	// Logout revokes token when it is still valid. Invalid tokens are ignored.
	Logout(ctx context.Context, token string) error
}

type userService struct {
	userRepo   repository.UserRepository
	tokens     TokenManager
	registered metric.Int64Counter
	logins     metric.Int64Counter
}

// NewUserService creates a new UserService.
func NewUserService(userRepo repository.UserRepository, tokens TokenManager) UserService {
	registered, _ := meter.Int64Counter("blog.users.registered",
		metric.WithDescription("Number of registered users"))
	logins, _ := meter.Int64Counter("blog.logins",
		metric.WithDescription("Number of successful logins"))

	return &userService{
		userRepo:   userRepo,
		tokens:     tokens,
		registered: registered,
		logins:     logins,
	}
}

// Register handles user registration.
func (s *userService) Register(ctx context.Context, req *models.RegisterRequest) (*models.User, error) {
	// Check if user already exists
	existingUser, err := s.userRepo.GetUserByUsername(ctx, req.Username)
	if err != nil {
		return nil, err
	}
	if existingUser != nil {
		return nil, ErrUsernameTaken
	}

	// bcrypt generates and embeds a random salt.
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     req.Username,
		PasswordHash: string(hashedPassword),
	}
	if err := s.userRepo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateUsername) {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}

	s.registered.Add(ctx, 1)
	return user, nil
}

// Login handles user login and returns a JWT on success.
func (s *userService) Login(ctx context.Context, req *models.LoginRequest) (*models.User, string, error) {
	user, err := s.userRepo.GetUserByUsername(ctx, req.Username)
	if err != nil {
		return nil, "", err
	}
	if user == nil {
		return nil, "", ErrWrongCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, "", ErrWrongCredentials
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, "", err
	}

	s.logins.Add(ctx, 1)
	return user, token, nil
}

// Logout revokes the token so it can no longer be used even if a client
// kept a copy.
func (s *userService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	claims, err := s.tokens.Verify(ctx, token)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrRevokedToken) {
			return nil
		}
		return err
	}
	return s.tokens.Revoke(ctx, claims)
}
