// Package storage persists uploaded cover images and serves them back.
package storage

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"path"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// URLPrefix is the route prefix covers are served under; stored cover paths
// are relative to it, e.g. "uploads/3f1c....jpg".
const URLPrefix = "uploads"

// ErrUnsupportedType is returned by Save for files that are not images.
var ErrUnsupportedType = errors.New("unsupported cover type")

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".avif": true,
}

// Storage saves one uploaded file per call and returns its cover path.
type Storage interface {
	Save(ctx context.Context, file *multipart.FileHeader) (string, error)
	// Delete removes a cover previously returned by Save.
	Delete(ctx context.Context, cover string) error
	// Mount registers the read-only routes that serve stored covers.
	Mount(r gin.IRoutes)
}

// newObjectName returns a unique name for an upload.
func newObjectName() string {
	return uuid.New().String()
}

// extensionOf returns the lower-cased extension of the client file name, or
// ErrUnsupportedType when it is not a known image extension.
func extensionOf(filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if !imageExtensions[ext] {
		return "", ErrUnsupportedType
	}
	return ext, nil
}

func coverPath(name string) string {
	return path.Join(URLPrefix, name)
}

// objectName returns the single path segment a cover is stored under.
func objectName(cover string) (string, bool) {
	name := strings.TrimPrefix(strings.TrimPrefix(cover, URLPrefix+"/"), "/")
	name = path.Clean(name)
	if name == "." || name == ".." || strings.Contains(name, "/") {
		return "", false
	}
	return name, true
}

// noSniff stops browsers from second-guessing the content type of covers.
func noSniff(c *gin.Context) {
	c.Header("X-Content-Type-Options", "nosniff")
	c.Header("Content-Security-Policy", "default-src 'none'")
}

func notFound(c *gin.Context) {
	c.Status(http.StatusNotFound)
}
