package services

import (
	"context"
	"io"

	"civic-polls/internal/domain/role"
	"civic-polls/internal/redis"

	"github.com/google/uuid"
)

// OTPStore keeps pending sign-in codes. Implemented by redis.OTPStore.
type OTPStore interface {
	Issue(ctx context.Context, phone, fullName string) (string, error)
	Verify(ctx context.Context, phone, code string) (string, error)
}

// RateLimiter is implemented by redis.RateLimiter.
type RateLimiter interface {
	AllowOTP(ctx context.Context, phone string) (*redis.RateLimitResult, error)
	AllowAuth(ctx context.Context, ip string) (*redis.RateLimitResult, error)
	AllowVote(ctx context.Context, userID string) (*redis.RateLimitResult, error)
	ResetOTP(ctx context.Context, phone string) error
}

// AuthzCache is implemented by redis.CacheStore. SetAuthz stores the context
// only if the generation read by AuthzGeneration has not moved since.
type AuthzCache interface {
	GetAuthz(ctx context.Context, userID uuid.UUID) (*role.Context, error)
	AuthzGeneration(ctx context.Context, userID uuid.UUID) (int64, error)
	SetAuthz(ctx context.Context, authz role.Context, gen int64) (bool, error)
	InvalidateAuthz(ctx context.Context, userID uuid.UUID) error
}

type StatsCache interface {
	GetStats(ctx context.Context, name string, dst interface{}) (bool, error)
	SetStats(ctx context.Context, name string, v interface{}) error
}

// BlobStore is implemented by storage.Client.
type BlobStore interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error)
}

// CodeSender delivers a one-time code to a phone number.
type CodeSender interface {
	SendCode(ctx context.Context, phone, code string) error
}
