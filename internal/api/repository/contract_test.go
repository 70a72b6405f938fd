package repository

import (
	"context"
	"ctchen222/blog/internal/api/models"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The same behaviour is expected from every store backend; each backend's
// test file runs these against its own implementation.

func testUserRepository(t *testing.T, repo UserRepository) {
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		user := &models.User{Username: "alice", PasswordHash: "hash-a"}
		require.NoError(t, repo.CreateUser(ctx, user))
		require.NotEmpty(t, user.ID)

		got, err := repo.GetUserByUsername(ctx, "alice")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, user.ID, got.ID)
		assert.Equal(t, "hash-a", got.PasswordHash)
	})

	t.Run("duplicate username", func(t *testing.T) {
		require.NoError(t, repo.CreateUser(ctx, &models.User{Username: "carol", PasswordHash: "x"}))
		err := repo.CreateUser(ctx, &models.User{Username: "carol", PasswordHash: "y"})
		assert.ErrorIs(t, err, ErrDuplicateUsername)
	})

	t.Run("unknown username", func(t *testing.T) {
		got, err := repo.GetUserByUsername(ctx, "nobody")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func testPostRepository(t *testing.T, users UserRepository, posts PostRepository) {
	ctx := context.Background()

	author := &models.User{Username: "writer", PasswordHash: "super-secret-hash"}
	require.NoError(t, users.CreateUser(ctx, author))

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("create and get round trip", func(t *testing.T) {
		post := &models.Post{
			Title:     "Hello",
			Summary:   "First",
			Content:   "<p>body</p>",
			Cover:     "uploads/a.png",
			AuthorID:  author.ID,
			CreatedAt: base,
			UpdatedAt: base,
		}
		require.NoError(t, posts.CreatePost(ctx, post))
		require.NotEmpty(t, post.ID)

		got, err := posts.GetPost(ctx, post.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "Hello", got.Title)
		assert.Equal(t, "First", got.Summary)
		assert.Equal(t, "<p>body</p>", got.Content)
		assert.Equal(t, "uploads/a.png", got.Cover)
		assert.Equal(t, author.ID, got.AuthorID)
		assert.Equal(t, &models.Author{Username: "writer"}, got.Author)
		assert.True(t, base.Equal(got.CreatedAt))
	})

	t.Run("update", func(t *testing.T) {
		post := &models.Post{Title: "Old", Summary: "s", Content: "c", Cover: "uploads/old.png",
			AuthorID: author.ID, CreatedAt: base, UpdatedAt: base}
		require.NoError(t, posts.CreatePost(ctx, post))

		post.Title = "New"
		post.Cover = "uploads/new.png"
		post.UpdatedAt = base.Add(time.Hour)
		require.NoError(t, posts.UpdatePost(ctx, post))

		got, err := posts.GetPost(ctx, post.ID)
		require.NoError(t, err)
		assert.Equal(t, "New", got.Title)
		assert.Equal(t, "uploads/new.png", got.Cover)
		assert.True(t, base.Equal(got.CreatedAt))
		assert.True(t, base.Add(time.Hour).Equal(got.UpdatedAt))
	})

	t.Run("unknown post", func(t *testing.T) {
		got, err := posts.GetPost(ctx, "does-not-exist")
		require.NoError(t, err)
		assert.Nil(t, got)

		err = posts.UpdatePost(ctx, &models.Post{ID: "does-not-exist"})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("list newest first limited", func(t *testing.T) {
		for i := 0; i < 25; i++ {
			created := base.Add(time.Duration(i+1) * 24 * time.Hour)
			require.NoError(t, posts.CreatePost(ctx, &models.Post{
				Title:     fmt.Sprintf("post %02d", i),
				Summary:   "s",
				Content:   "c",
				Cover:     "uploads/x.png",
				AuthorID:  author.ID,
				CreatedAt: created,
				UpdatedAt: created,
			}))
		}

		list, err := posts.ListPosts(ctx, 20)
		require.NoError(t, err)
		require.Len(t, list, 20)
		assert.Equal(t, "post 24", list[0].Title)
		for i := 1; i < len(list); i++ {
			assert.True(t, list[i-1].CreatedAt.After(list[i].CreatedAt),
				"posts must be strictly newest first: %v then %v", list[i-1].CreatedAt, list[i].CreatedAt)
		}

		raw, err := json.Marshal(list)
		require.NoError(t, err)
		assert.NotContains(t, string(raw), "super-secret-hash")
		assert.NotContains(t, string(raw), author.ID)
		for _, p := range list {
			assert.Equal(t, &models.Author{Username: "writer"}, p.Author)
		}
	})

	t.Run("equal timestamps list in insertion order", func(t *testing.T) {
		same := base.Add(1000 * 24 * time.Hour)
		for i := 0; i < 25; i++ {
			require.NoError(t, posts.CreatePost(ctx, &models.Post{
				Title:     fmt.Sprintf("tie %02d", i),
				Summary:   "s",
				Content:   "c",
				Cover:     "uploads/x.png",
				AuthorID:  author.ID,
				CreatedAt: same,
				UpdatedAt: same,
			}))
		}

		list, err := posts.ListPosts(ctx, 20)
		require.NoError(t, err)
		require.Len(t, list, 20)
		for i, p := range list {
			assert.Equal(t, fmt.Sprintf("tie %02d", 24-i), p.Title)
		}
	})
}
