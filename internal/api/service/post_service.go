package service

import (
	"context"
	"ctchen222/blog/internal/api/models"
	"ctchen222/blog/internal/api/repository"
	"ctchen222/blog/internal/storage"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ListLimit is the number of posts returned by List.
const ListLimit = 20

var (
	ErrPostNotFound = errors.New("post not found")
	ErrNotAuthor    = errors.New("you are not the author")
)

// PostService defines the interface for post-related business logic.
type PostService interface {
	Create(ctx context.Context, author models.Identity, req *models.CreatePostRequest) (*models.Post, error)
	Update(ctx context.Context, author models.Identity, req *models.UpdatePostRequest) (*models.Post, error)
	Get(ctx context.Context, id string) (*models.Post, error)
	List(ctx context.Context) ([]models.Post, error)
}

type postService struct {
	postRepo repository.PostRepository
	storage  storage.Storage
	now      func() time.Time
	writes   metric.Int64Counter
}

// NewPostService creates a new PostService.
func NewPostService(postRepo repository.PostRepository, st storage.Storage) PostService {
	writes, _ := meter.Int64Counter("blog.posts.writes",
		metric.WithDescription("Number of created or updated posts"))

	return &postService{
		postRepo: postRepo,
		storage:  st,
		now:      time.Now,
		writes:   writes,
	}
}

// timestamp is truncated to milliseconds, the precision every store keeps.
func (s *postService) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

// Create stores the cover and inserts a post owned by author.
func (s *postService) Create(ctx context.Context, author models.Identity, req *models.CreatePostRequest) (*models.Post, error) {
	cover, err := s.storage.Save(ctx, req.File)
	if err != nil {
		return nil, fmt.Errorf("failed to store cover: %w", err)
	}

	now := s.timestamp()
	post := &models.Post{
		Title:     req.Title,
		Summary:   req.Summary,
		Content:   req.Content,
		Cover:     cover,
		AuthorID:  author.ID,
		Author:    &models.Author{Username: author.Username},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.postRepo.CreatePost(ctx, post); err != nil {
		s.discardCover(ctx, cover)
		return nil, err
	}

	s.writes.Add(ctx, 1, metric.WithAttributes(attribute.String("op", "create")))
	return post, nil
}

// Update changes a post owned by author. The cover is replaced only when a
// new file is supplied. The persisted post is returned.
func (s *postService) Update(ctx context.Context, author models.Identity, req *models.UpdatePostRequest) (*models.Post, error) {
	post, err := s.postRepo.GetPost(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, ErrPostNotFound
	}
	if post.AuthorID != author.ID {
		return nil, ErrNotAuthor
	}

	newCover := ""
	if req.File != nil {
		newCover, err = s.storage.Save(ctx, req.File)
		if err != nil {
			return nil, fmt.Errorf("failed to store cover: %w", err)
		}
		post.Cover = newCover
	}
	post.Title = req.Title
	post.Summary = req.Summary
	post.Content = req.Content
	post.UpdatedAt = s.timestamp()

	if err := s.postRepo.UpdatePost(ctx, post); err != nil {
		if newCover != "" {
			s.discardCover(ctx, newCover)
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}

	updated, err := s.postRepo.GetPost(ctx, post.ID)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, ErrPostNotFound
	}

	s.writes.Add(ctx, 1, metric.WithAttributes(attribute.String("op", "update")))
	return updated, nil
}

// discardCover removes an upload whose post was never persisted.
func (s *postService) discardCover(ctx context.Context, cover string) {
	if err := s.storage.Delete(ctx, cover); err != nil {
		slog.ErrorContext(ctx, "failed to discard orphaned cover", "upload.cover", cover, "error", err)
	}
}

// Get returns a single post with its author resolved.
func (s *postService) Get(ctx context.Context, id string) (*models.Post, error) {
	post, err := s.postRepo.GetPost(ctx, id)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, ErrPostNotFound
	}
	return post, nil
}

// List returns the newest posts first.
func (s *postService) List(ctx context.Context) ([]models.Post, error) {
	return s.postRepo.ListPosts(ctx, ListLimit)
}
