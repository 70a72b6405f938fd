package repository

//go:generate mockgen -source=repository.go -destination=mocks/mock_repository.go -package=mocks

import (
	"context"
	"ctchen222/blog/internal/api/models"
	"errors"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("api.repository")

var (
	ErrDuplicateUsername = errors.New("username already taken")
	ErrNotFound          = errors.New("not found")
)

// UserRepository defines the interface for user data operations.
type UserRepository interface {
	// CreateUser inserts user and sets its ID. A taken username yields
	// ErrDuplicateUsername.
	CreateUser(ctx context.Context, user *models.User) error
	// GetUserByUsername returns nil, nil when no user matches.
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
}

// PostRepository defines the interface for post data operations. Posts
// returned by Get and List carry a resolved Author.
type PostRepository interface {
	CreatePost(ctx context.Context, post *models.Post) error
	// UpdatePost persists title, summary, content, cover and updatedAt.
	UpdatePost(ctx context.Context, post *models.Post) error
	// GetPost returns nil, nil when no post matches id.
	GetPost(ctx context.Context, id string) (*models.Post, error)
	// ListPosts returns up to limit posts, newest first.
	ListPosts(ctx context.Context, limit int) ([]models.Post, error)
}
