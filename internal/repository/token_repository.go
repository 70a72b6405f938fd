package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("repository.token")

// TokenRepository tracks revoked auth tokens by their jti.
type TokenRepository interface {
	// Revoke marks id as revoked until ttl elapses. Non-positive ttl is a no-op.
	Revoke(ctx context.Context, id string, ttl time.Duration) error
	IsRevoked(ctx context.Context, id string) (bool, error)
}

type redisTokenRepository struct {
	rdb *redis.Client
}

// NewTokenRepository creates a new Redis-based TokenRepository.
func NewTokenRepository(rdb *redis.Client) TokenRepository {
	return &redisTokenRepository{
		rdb: rdb,
	}
}

// Revoke stores the token id with an expiry matching the token's own.
func (r *redisTokenRepository) Revoke(ctx context.Context, id string, ttl time.Duration) error {
	ctx, span := tracer.Start(ctx, "TokenRepository.Revoke")
	defer span.End()

	if ttl <= 0 {
		return nil
	}
	return r.rdb.Set(ctx, revokedKey(id), "1", ttl).Err()
}

// IsRevoked reports whether the token id was revoked.
func (r *redisTokenRepository) IsRevoked(ctx context.Context, id string) (bool, error) {
	ctx, span := tracer.Start(ctx, "TokenRepository.IsRevoked")
	defer span.End()

	n, err := r.rdb.Exists(ctx, revokedKey(id)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func revokedKey(id string) string {
	return fmt.Sprintf("token:revoked:%s", id)
}
