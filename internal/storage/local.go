package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
)

// LocalStorage keeps covers in a directory on the local filesystem.
type LocalStorage struct {
	dir string
}

// NewLocalStorage creates dir if needed and returns a LocalStorage rooted at it.
func NewLocalStorage(dir string) (*LocalStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &LocalStorage{dir: dir}, nil
}

// Save writes the raw upload under a generated name, then renames it to
// carry the original extension so static serving picks the right
// content type.
func (s *LocalStorage) Save(ctx context.Context, file *multipart.FileHeader) (string, error) {
	ext, err := extensionOf(file.Filename)
	if err != nil {
		return "", err
	}

	src, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open upload: %w", err)
	}
	defer src.Close()

	name := newObjectName()
	rawPath := filepath.Join(s.dir, name)

	dst, err := os.OpenFile(rawPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create upload file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(rawPath)
		return "", fmt.Errorf("failed to write upload: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(rawPath)
		return "", fmt.Errorf("failed to write upload: %w", err)
	}

	finalName := name + ext
	if err := os.Rename(rawPath, filepath.Join(s.dir, finalName)); err != nil {
		os.Remove(rawPath)
		return "", fmt.Errorf("failed to rename upload: %w", err)
	}

	slog.DebugContext(ctx, "stored upload", "upload.name", finalName, "upload.size", file.Size)
	return coverPath(finalName), nil
}

// Delete removes a stored cover. Missing files are not an error.
func (s *LocalStorage) Delete(ctx context.Context, cover string) error {
	name, ok := objectName(cover)
	if !ok {
		return fmt.Errorf("invalid cover path %q", cover)
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete upload: %w", err)
	}
	return nil
}

// Mount serves the upload directory read-only.
func (s *LocalStorage) Mount(r gin.IRoutes) {
	route := "/" + URLPrefix + "/*name"
	r.GET(route, noSniff, s.serve)
	r.HEAD(route, noSniff, s.serve)
}

func (s *LocalStorage) serve(c *gin.Context) {
	name, ok := objectName(c.Param("name"))
	if !ok {
		notFound(c)
		return
	}
	c.File(filepath.Join(s.dir, name))
}
