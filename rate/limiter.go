package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrRateLimited is matched by LimitedError under errors.Is.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps transport failures against the limiter backend.
	ErrRedisUnavailable = errors.New("rate redis unavailable")
)

// LimitedError reports a rejected request and the wait until the window
// reopens, rounded up to whole seconds.
type LimitedError struct {
	Route      string
	RetryAfter time.Duration
}

func (e *LimitedError) Error() string {
	return fmt.Sprintf("rate limited on %s, retry after %s", e.Route, e.RetryAfter)
}

func (e *LimitedError) Is(target error) bool { return target == ErrRateLimited }

// Window is one route's budget: at most MaxRequests per Duration.
type Window struct {
	MaxRequests int
	Duration    time.Duration
}

// Limiter enforces per-route fixed windows keyed by caller identifier.
// Routes without a configured window are unlimited.
type Limiter struct {
	redis   redis.UniversalClient
	prefix  string
	windows map[string]Window
}

// New creates a Limiter with the given per-route windows.
func New(redisClient redis.UniversalClient, windows map[string]Window) *Limiter {
	return &Limiter{
		redis:   redisClient,
		prefix:  "arl",
		windows: windows,
	}
}

func (l *Limiter) key(route, identifier string) string {
	return l.prefix + ":" + route + ":" + identifier
}

// Check records one hit for (route, identifier) and reports whether the
// request fits the route's window.
func (l *Limiter) Check(ctx context.Context, route, identifier string) error {
	window, ok := l.windows[route]
	if !ok || window.MaxRequests <= 0 {
		return nil
	}

	key := l.key(route, identifier)
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: the first hit opens the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, window.Duration).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	if count <= int64(window.MaxRequests) {
		return nil
	}

	retryAfter, err := l.retryAfter(ctx, key, window)
	if err != nil {
		return err
	}
	return &LimitedError{Route: route, RetryAfter: retryAfter}
}

func (l *Limiter) retryAfter(ctx context.Context, key string, window Window) (time.Duration, error) {
	ttl, err := l.redis.PTTL(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if ttl <= 0 {
		return window.Duration, nil
	}
	return ceilSeconds(ttl), nil
}

func ceilSeconds(d time.Duration) time.Duration {
	secs := d / time.Second
	if d%time.Second != 0 {
		secs++
	}
	if secs < 1 {
		secs = 1
	}
	return secs * time.Second
}
