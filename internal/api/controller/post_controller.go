package controller

import (
	"ctchen222/blog/internal/api/middleware"
	"ctchen222/blog/internal/api/models"
	"ctchen222/blog/internal/api/response"
	"ctchen222/blog/internal/api/service"
	"ctchen222/blog/internal/storage"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// PostController handles post-related HTTP requests.
type PostController struct {
	postService service.PostService
}

// NewPostController creates a new PostController.
func NewPostController(postService service.PostService) *PostController {
	return &PostController{postService: postService}
}

// Create handles the multipart create-post endpoint.
func (pc *PostController) Create(c *gin.Context) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		response.ErrorResponse(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req models.CreatePostRequest
	if err := c.ShouldBind(&req); err != nil {
		response.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	post, err := pc.postService.Create(c.Request.Context(), identity, &req)
	if err != nil {
		pc.writeError(c, err)
		return
	}
	response.SuccessResponse(c, post)
}

// Update handles the multipart update-post endpoint.
func (pc *PostController) Update(c *gin.Context) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		response.ErrorResponse(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req models.UpdatePostRequest
	if err := c.ShouldBind(&req); err != nil {
		response.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	post, err := pc.postService.Update(c.Request.Context(), identity, &req)
	if err != nil {
		pc.writeError(c, err)
		return
	}
	response.SuccessResponse(c, post)
}

// List returns the newest posts.
func (pc *PostController) List(c *gin.Context) {
	posts, err := pc.postService.List(c.Request.Context())
	if err != nil {
		pc.writeError(c, err)
		return
	}
	response.SuccessResponseList(c, posts)
}

// Get returns a single post by id.
func (pc *PostController) Get(c *gin.Context) {
	post, err := pc.postService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		pc.writeError(c, err)
		return
	}
	response.SuccessResponse(c, post)
}

func (pc *PostController) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPostNotFound):
		response.ErrorResponse(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrNotAuthor):
		response.ErrorResponse(c, http.StatusForbidden, err.Error())
	case errors.Is(err, storage.ErrUnsupportedType):
		response.ErrorResponse(c, http.StatusBadRequest, "cover must be a jpg, png, gif, webp or avif image")
	default:
		internalError(c, "post request failed", err)
	}
}
