package storage

import (
	"context"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
)

const presignExpiry = 15 * time.Minute

type objectStore interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type objectPresigner interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Options configures an S3-compatible cover store.
type S3Options struct {
	Bucket    string
	Region    string
	Endpoint  string // optional, e.g. a MinIO URL
	AccessKey string
	SecretKey string
}

// S3Storage keeps covers in an S3 bucket and serves them through
// short-lived presigned URLs.
type S3Storage struct {
	bucket    string
	client    objectStore
	presigner objectPresigner
}

// NewS3Storage builds an S3 client from opts.
func NewS3Storage(ctx context.Context, opts S3Options) (*S3Storage, error) {
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Storage{
		bucket:    opts.Bucket,
		client:    client,
		presigner: s3.NewPresignClient(client),
	}, nil
}

// Save uploads the file under a generated key that keeps the original
// extension.
func (s *S3Storage) Save(ctx context.Context, file *multipart.FileHeader) (string, error) {
	ext, err := extensionOf(file.Filename)
	if err != nil {
		return "", err
	}

	src, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open upload: %w", err)
	}
	defer src.Close()

	name := newObjectName() + ext
	in := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(name),
		Body:          src,
		ContentLength: aws.Int64(file.Size),
	}
	if ct := file.Header.Get("Content-Type"); ct != "" {
		in.ContentType = aws.String(ct)
	}

	if _, err := s.client.PutObject(ctx, in); err != nil {
		return "", fmt.Errorf("failed to put object: %w", err)
	}

	slog.DebugContext(ctx, "stored upload in s3", "upload.name", name, "s3.bucket", s.bucket)
	return coverPath(name), nil
}

// Delete removes a stored cover from the bucket.
func (s *S3Storage) Delete(ctx context.Context, cover string) error {
	name, ok := objectName(cover)
	if !ok {
		return fmt.Errorf("invalid cover path %q", cover)
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// Mount redirects cover requests to a presigned GET URL.
func (s *S3Storage) Mount(r gin.IRoutes) {
	r.GET("/"+URLPrefix+"/*name", s.redirect)
}

func (s *S3Storage) redirect(c *gin.Context) {
	name, ok := objectName(c.Param("name"))
	if !ok {
		notFound(c)
		return
	}

	req, err := s.presigner.PresignGetObject(c.Request.Context(), &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name),
	}, s3.WithPresignExpires(presignExpiry))
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "failed to presign cover", "upload.name", name, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Redirect(http.StatusFound, req.URL)
}
