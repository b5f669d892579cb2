package session

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/coachbase/authgate/internal"
)

var (
	// ErrNotFound is returned when no live session exists for a refresh token.
	ErrNotFound = errors.New("session not found")
	// ErrRedisUnavailable wraps transport failures against the session backend.
	ErrRedisUnavailable = errors.New("session redis unavailable")
)

// Session binds a refresh token to a subject and an expiry.
type Session struct {
	SubjectID string `json:"sub"`
	Role      string `json:"role"`
	CreatedAt int64  `json:"cat"`
	ExpiresAt int64  `json:"exp"`
}

// Store is a Redis-backed session store keyed by refresh-token digest.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore creates a session Store under the given key prefix.
func NewStore(redisClient redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "asn"
	}
	return &Store{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *Store) key(refreshToken string) string {
	sum := internal.HashToken(refreshToken)
	return s.prefix + ":" + base64.RawURLEncoding.EncodeToString(sum[:])
}

// Create persists a session for the refresh token with the given lifetime.
// An existing session under the same token is overwritten.
func (s *Store) Create(ctx context.Context, refreshToken, subjectID, role string, ttl time.Duration) error {
	if refreshToken == "" || subjectID == "" {
		return errors.New("session requires refresh token and subject")
	}
	if ttl <= 0 {
		return errors.New("session ttl must be positive")
	}

	now := time.Now()
	sess := Session{
		SubjectID: subjectID,
		Role:      role,
		CreatedAt: now.Unix(),
		ExpiresAt: now.Add(ttl).Unix(),
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.key(refreshToken), data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// FindByRefreshToken returns the live session for a refresh token. A record
// whose ExpiresAt has passed is deleted and reported as ErrNotFound — the
// read-time check is authoritative, not Redis eviction timing.
func (s *Store) FindByRefreshToken(ctx context.Context, refreshToken string) (*Session, error) {
	if refreshToken == "" {
		return nil, ErrNotFound
	}

	data, err := s.redis.Get(ctx, s.key(refreshToken)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("corrupt session record: %v", err)
	}

	if time.Now().Unix() > sess.ExpiresAt {
		if err := s.DeleteByRefreshToken(ctx, refreshToken); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}

	return &sess, nil
}

// DeleteByRefreshToken removes the session for a refresh token. Deleting a
// missing session is not an error.
func (s *Store) DeleteByRefreshToken(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}

	if err := s.redis.Del(ctx, s.key(refreshToken)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
