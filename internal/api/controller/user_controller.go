package controller

import (
	"ctchen222/blog/internal/api/middleware"
	"ctchen222/blog/internal/api/models"
	"ctchen222/blog/internal/api/response"
	"ctchen222/blog/internal/api/service"
	"ctchen222/blog/internal/auth"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// CookieOptions controls how the auth cookie is written.
type CookieOptions struct {
	Secure bool
	MaxAge time.Duration
}

// UserController handles user-related HTTP requests.
type UserController struct {
	userService service.UserService
	cookie      CookieOptions
}

// NewUserController creates a new UserController.
func NewUserController(userService service.UserService, cookie CookieOptions) *UserController {
	return &UserController{
		userService: userService,
		cookie:      cookie,
	}
}

// Register handles the user registration endpoint.
func (uc *UserController) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	user, err := uc.userService.Register(c.Request.Context(), &req)
	if err != nil {
		response.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	response.SuccessResponse(c, user)
}

// Login handles the user login endpoint.
func (uc *UserController) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	user, token, err := uc.userService.Login(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrWrongCredentials) {
			response.ErrorResponse(c, http.StatusBadRequest, err.Error())
			return
		}
		internalError(c, "login failed", err)
		return
	}

	uc.setTokenCookie(c, token, int(uc.cookie.MaxAge.Seconds()))
	response.SuccessResponse(c, models.Identity{ID: user.ID, Username: user.Username})
}

// Profile returns the identity embedded in the caller's token.
func (uc *UserController) Profile(c *gin.Context) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		response.ErrorResponse(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	response.SuccessResponse(c, identity)
}

// Logout clears the auth cookie and revokes the token it carried.
func (uc *UserController) Logout(c *gin.Context) {
	token, _ := c.Cookie(auth.CookieName)
	if err := uc.userService.Logout(c.Request.Context(), token); err != nil {
		slog.ErrorContext(c.Request.Context(), "failed to revoke token on logout", "error", err)
	}

	uc.setTokenCookie(c, "", -1)
	response.SuccessResponse(c, "ok")
}

func (uc *UserController) setTokenCookie(c *gin.Context, value string, maxAge int) {
	// Cross-site cookies need SameSite=None, which browsers only accept on
	// secure cookies.
	if uc.cookie.Secure {
		c.SetSameSite(http.SameSiteNoneMode)
	} else {
		c.SetSameSite(http.SameSiteLaxMode)
	}
	c.SetCookie(auth.CookieName, value, maxAge, "/", "", uc.cookie.Secure, true)
}

func internalError(c *gin.Context, msg string, err error) {
	slog.ErrorContext(c.Request.Context(), msg, "error", err)
	response.ErrorResponse(c, http.StatusInternalServerError, "internal server error")
}
