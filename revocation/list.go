package revocation

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/coachbase/authgate/internal"
)

// ErrRedisUnavailable wraps transport failures against the revocation backend.
var ErrRedisUnavailable = errors.New("revocation redis unavailable")

// List is a Redis-backed set of revoked tokens. Tokens are keyed by digest,
// never stored raw.
type List struct {
	redis  redis.UniversalClient
	prefix string
}

// NewList creates a revocation List under the given key prefix.
func NewList(redisClient redis.UniversalClient, prefix string) *List {
	if prefix == "" {
		prefix = "arv"
	}
	return &List{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (l *List) key(token string) string {
	sum := internal.HashToken(token)
	return l.prefix + ":" + base64.RawURLEncoding.EncodeToString(sum[:])
}

// Add inserts a token into the revocation set. The insert is idempotent;
// re-adding an already revoked token only refreshes its TTL. ttl should be
// the token's remaining natural lifetime — a non-positive ttl is clamped to
// a minimum so that a revocation issued at the expiry boundary still lands.
func (l *List) Add(ctx context.Context, token string, ttl time.Duration) error {
	if token == "" {
		return nil
	}
	if ttl <= 0 {
		ttl = time.Minute
	}

	if err := l.redis.Set(ctx, l.key(token), "1", ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Contains reports whether the token has been revoked.
func (l *List) Contains(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}

	n, err := l.redis.Exists(ctx, l.key(token)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n > 0, nil
}
