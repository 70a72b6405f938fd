package models

import (
	"mime/multipart"
	"time"
)

// Author is the public view of a post's author.
type Author struct {
	Username string `json:"username" bson:"username"`
}

// Post represents a blog post. AuthorID is never serialized; readers see
// only the resolved Author.
type Post struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Summary   string    `json:"summary"`
	Content   string    `json:"content"`
	Cover     string    `json:"cover"`
	AuthorID  string    `json:"-"`
	Author    *Author   `json:"author,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CreatePostRequest is the multipart form for creating a post.
type CreatePostRequest struct {
	Title   string                `form:"title" binding:"required"`
	Summary string                `form:"summary" binding:"required"`
	Content string                `form:"content" binding:"required"`
	File    *multipart.FileHeader `form:"file" binding:"required"`
}

// UpdatePostRequest is the multipart form for updating a post. File is
// optional; the cover is kept when it is absent.
type UpdatePostRequest struct {
	ID      string                `form:"id" binding:"required"`
	Title   string                `form:"title" binding:"required"`
	Summary string                `form:"summary" binding:"required"`
	Content string                `form:"content" binding:"required"`
	File    *multipart.FileHeader `form:"file"`
}
