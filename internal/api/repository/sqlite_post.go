package repository

import (
	"context"
	"ctchen222/blog/internal/api/models"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// postRow mirrors the posts table joined with the author's username.
// Timestamps are stored as unix nanoseconds.
type postRow struct {
	ID             string `db:"id"`
	Title          string `db:"title"`
	Summary        string `db:"summary"`
	Content        string `db:"content"`
	Cover          string `db:"cover"`
	AuthorID       string `db:"author_id"`
	AuthorUsername string `db:"author_username"`
	CreatedAt      int64  `db:"created_at"`
	UpdatedAt      int64  `db:"updated_at"`
}

func (r postRow) toModel() models.Post {
	return models.Post{
		ID:        r.ID,
		Title:     r.Title,
		Summary:   r.Summary,
		Content:   r.Content,
		Cover:     r.Cover,
		AuthorID:  r.AuthorID,
		Author:    &models.Author{Username: r.AuthorUsername},
		CreatedAt: time.Unix(0, r.CreatedAt).UTC(),
		UpdatedAt: time.Unix(0, r.UpdatedAt).UTC(),
	}
}

const selectPostWithAuthor = `
SELECT p.id, p.title, p.summary, p.content, p.cover, p.author_id,
       u.username AS author_username, p.created_at, p.updated_at
FROM posts p
JOIN users u ON u.id = p.author_id`

type sqlitePostRepository struct {
	db *sqlx.DB
}

// NewSQLitePostRepository creates a new SQLite-based PostRepository.
func NewSQLitePostRepository(db *sqlx.DB) PostRepository {
	return &sqlitePostRepository{db: db}
}

func (r *sqlitePostRepository) CreatePost(ctx context.Context, post *models.Post) error {
	ctx, span := tracer.Start(ctx, "PostRepository.CreatePost")
	defer span.End()

	now := time.Now().UTC()
	if post.CreatedAt.IsZero() {
		post.CreatedAt = now
	}
	if post.UpdatedAt.IsZero() {
		post.UpdatedAt = post.CreatedAt
	}

	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("failed to generate post id: %w", err)
	}
	query := `INSERT INTO posts (id, title, summary, content, cover, author_id, created_at, updated_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query, id.String(), post.Title, post.Summary, post.Content, post.Cover,
		post.AuthorID, post.CreatedAt.UnixNano(), post.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to create post: %w", err)
	}
	post.ID = id.String()
	return nil
}

func (r *sqlitePostRepository) UpdatePost(ctx context.Context, post *models.Post) error {
	ctx, span := tracer.Start(ctx, "PostRepository.UpdatePost")
	defer span.End()

	query := `UPDATE posts SET title = ?, summary = ?, content = ?, cover = ?, updated_at = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query, post.Title, post.Summary, post.Content, post.Cover,
		post.UpdatedAt.UnixNano(), post.ID)
	if err != nil {
		return fmt.Errorf("failed to update post: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update post: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *sqlitePostRepository) GetPost(ctx context.Context, id string) (*models.Post, error) {
	ctx, span := tracer.Start(ctx, "PostRepository.GetPost")
	defer span.End()

	var row postRow
	err := r.db.GetContext(ctx, &row, selectPostWithAuthor+` WHERE p.id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	post := row.toModel()
	return &post, nil
}

func (r *sqlitePostRepository) ListPosts(ctx context.Context, limit int) ([]models.Post, error) {
	ctx, span := tracer.Start(ctx, "PostRepository.ListPosts")
	defer span.End()

	// rowid grows with every insert, so it orders posts sharing a timestamp.
	var rows []postRow
	err := r.db.SelectContext(ctx, &rows, selectPostWithAuthor+` ORDER BY p.created_at DESC, p.rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}

	posts := make([]models.Post, 0, len(rows))
	for _, row := range rows {
		posts = append(posts, row.toModel())
	}
	return posts, nil
}
