package middleware

import (
	"context"
	"ctchen222/blog/internal/api/models"
	"ctchen222/blog/internal/api/response"
	"ctchen222/blog/internal/auth"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const identityKey = "identity"

// TokenVerifier verifies the auth token carried in the request cookie.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*auth.Claims, error)
}

// AuthRequired rejects requests without a valid token cookie with 401 and
// stores the caller's identity in the context otherwise.
func AuthRequired(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		token, err := c.Cookie(auth.CookieName)
		if err != nil || token == "" {
			response.AbortWithError(c, http.StatusUnauthorized, "unauthorized")
			return
		}

		claims, err := verifier.Verify(ctx, token)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrRevokedToken) {
				response.AbortWithError(c, http.StatusUnauthorized, "unauthorized")
				return
			}
			slog.ErrorContext(ctx, "failed to verify token", "error", err)
			response.AbortWithError(c, http.StatusInternalServerError, "internal server error")
			return
		}

		trace.SpanFromContext(ctx).SetAttributes(attribute.String("user.id", claims.UserID))
		c.Set(identityKey, claims.Identity())
		c.Next()
	}
}

// CurrentIdentity returns the identity stored by AuthRequired.
func CurrentIdentity(c *gin.Context) (models.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return models.Identity{}, false
	}
	id, ok := v.(models.Identity)
	return id, ok
}
