// Package config loads the server configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"ctchen222/blog/internal/validator"
)

const (
	StoreMongo  = "mongo"
	StoreSQLite = "sqlite"

	UploadLocal = "local"
	UploadS3    = "s3"
)

// Config holds runtime settings for the blog server.
type Config struct {
	Addr string `validate:"required"`

	StoreDriver   string `validate:"oneof=mongo sqlite"`
	MongoURI      string `validate:"required_if=StoreDriver mongo"`
	MongoDatabase string `validate:"required_if=StoreDriver mongo"`
	SQLitePath    string `validate:"required_if=StoreDriver sqlite"`

	RedisAddr string `validate:"required"`

	JWTSecret    string        `validate:"required,min=8"`
	TokenTTL     time.Duration `validate:"gt=0"`
	CORSOrigin   string        `validate:"required,origin"`
	CookieSecure bool

	UploadDriver string `validate:"oneof=local s3"`
	UploadDir    string `validate:"required_if=UploadDriver local"`
	S3Bucket     string `validate:"required_if=UploadDriver s3"`
	S3Region     string `validate:"required_if=UploadDriver s3"`
	S3Endpoint   string
	S3AccessKey  string
	S3SecretKey  string

	OtelEnabled  bool
	OtelEndpoint string `validate:"required_if=OtelEnabled true"`

	GinMode string `validate:"oneof=debug release test"`
}

// LoadDefaults populates Config with development defaults.
func (c *Config) LoadDefaults() {
	c.Addr = ":4000"
	c.StoreDriver = StoreMongo
	c.MongoURI = "mongodb://localhost:27017"
	c.MongoDatabase = "blog"
	c.SQLitePath = "./blog.db"
	c.RedisAddr = "localhost:6379"
	c.JWTSecret = "my_super_secret_key"
	c.TokenTTL = 72 * time.Hour
	c.CORSOrigin = "http://localhost:3000"
	c.UploadDriver = UploadLocal
	c.UploadDir = "./uploads"
	c.S3Region = "us-east-1"
	c.OtelEndpoint = "otel-collector:4317"
	c.GinMode = "debug"
}

// Load applies defaults and then overlays environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := cfg.parseEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := validator.GetValidator().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

type lookupFunc func(key string) (string, bool)

func (c *Config) parseEnv(lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	str("ADDR", &c.Addr)
	str("STORE_DRIVER", &c.StoreDriver)
	str("MONGO_URI", &c.MongoURI)
	str("MONGO_DATABASE", &c.MongoDatabase)
	str("SQLITE_PATH", &c.SQLitePath)
	str("REDIS_CONNSTRING", &c.RedisAddr)
	str("JWT_SECRET", &c.JWTSecret)
	str("CORS_ORIGIN", &c.CORSOrigin)
	str("UPLOAD_DRIVER", &c.UploadDriver)
	str("UPLOAD_DIR", &c.UploadDir)
	str("S3_BUCKET", &c.S3Bucket)
	str("S3_REGION", &c.S3Region)
	str("S3_ENDPOINT", &c.S3Endpoint)
	str("S3_ACCESS_KEY", &c.S3AccessKey)
	str("S3_SECRET_KEY", &c.S3SecretKey)
	str("OTEL_ENDPOINT", &c.OtelEndpoint)
	str("GIN_MODE", &c.GinMode)

	if v, ok := lookup("TOKEN_TTL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("TOKEN_TTL: %w", err)
		}
		c.TokenTTL = d
	}
	if v, ok := lookup("COOKIE_SECURE"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("COOKIE_SECURE: %w", err)
		}
		c.CookieSecure = b
	}
	if v, ok := lookup("OTEL_ENABLED"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("OTEL_ENABLED: %w", err)
		}
		c.OtelEnabled = b
	}
	return nil
}
