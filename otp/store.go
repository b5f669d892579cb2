package otp

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/coachbase/authgate/internal"
)

const (
	challengeRecordVersionV1 = 1

	defaultCodeDigits  = 6
	defaultCodeTTL     = 5 * time.Minute
	defaultMaxAttempts = 5
	defaultLockoutTTL  = 15 * time.Minute
)

var (
	ErrChallengeNotFound   = errors.New("otp challenge not found")
	ErrChallengeExpired    = errors.New("otp challenge expired")
	ErrCodeMismatch        = errors.New("otp code mismatch")
	ErrLocked              = errors.New("otp identifier locked")
	ErrOTPRedisUnavailable = errors.New("otp redis unavailable")
)

// LockedError reports a suppressed verification along with how long the
// identifier stays locked. It matches ErrLocked under errors.Is.
type LockedError struct {
	RetryAfter time.Duration
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("otp identifier locked, retry after %s", e.RetryAfter)
}

func (e *LockedError) Is(target error) bool { return target == ErrLocked }

// Config controls challenge shape and lockout behavior.
type Config struct {
	CodeDigits  int
	CodeTTL     time.Duration
	MaxAttempts int
	LockoutTTL  time.Duration
	Secret      []byte // HMAC key for stored code digests
}

type challengeRecord struct {
	Attempts  uint16
	ExpiresAt int64
	CodeHash  [32]byte
}

// Store is a Redis-backed one-time code challenge store. One live challenge
// per identifier; generating a new one replaces any predecessor.
type Store struct {
	redis      redis.UniversalClient
	prefix     string
	lockPrefix string
	config     Config
}

// NewStore creates an OTP Store. The HMAC secret is mandatory; zero-valued
// tuning fields fall back to defaults.
func NewStore(redisClient redis.UniversalClient, cfg Config) (*Store, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("otp store requires a hashing secret")
	}
	if cfg.CodeDigits == 0 {
		cfg.CodeDigits = defaultCodeDigits
	}
	if cfg.CodeTTL == 0 {
		cfg.CodeTTL = defaultCodeTTL
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.LockoutTTL == 0 {
		cfg.LockoutTTL = defaultLockoutTTL
	}
	if cfg.CodeDigits < 4 || cfg.CodeDigits > 10 {
		return nil, errors.New("otp code digits must be between 4 and 10")
	}
	if cfg.CodeTTL < 0 || cfg.MaxAttempts < 0 || cfg.LockoutTTL < 0 {
		return nil, errors.New("otp durations and attempts must be non-negative")
	}

	return &Store{
		redis:      redisClient,
		prefix:     "aoc",
		lockPrefix: "aol",
		config:     cfg,
	}, nil
}

func (s *Store) key(identifier string) string {
	return s.prefix + ":" + identifier
}

func (s *Store) lockKey(identifier string) string {
	return s.lockPrefix + ":" + identifier
}

// Generate creates a fresh challenge for the identifier and returns the
// plaintext code for delivery. A prior unconsumed challenge is replaced.
func (s *Store) Generate(ctx context.Context, identifier string) (string, error) {
	if identifier == "" {
		return "", errors.New("otp identifier is empty")
	}

	code, err := internal.NewOTP(s.config.CodeDigits)
	if err != nil {
		return "", err
	}

	record := &challengeRecord{
		ExpiresAt: time.Now().Add(s.config.CodeTTL).Unix(),
		CodeHash:  internal.HashCode(s.config.Secret, code),
	}
	encoded, err := encodeChallengeRecord(record)
	if err != nil {
		return "", err
	}

	if err := s.redis.Set(ctx, s.key(identifier), encoded, s.config.CodeTTL).Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrOTPRedisUnavailable, err)
	}

	return code, nil
}

// Verify checks a submitted code against the identifier's live challenge.
// A live lock suppresses verification outright, before the challenge is even
// consulted. A matching code consumes the challenge. A mismatch increments
// the attempt counter atomically; the attempt that reaches the limit burns
// the challenge and sets the lock, so the next call fails locked regardless
// of the code it carries.
func (s *Store) Verify(ctx context.Context, identifier, code string) error {
	if identifier == "" || code == "" {
		return ErrCodeMismatch
	}

	if remaining, locked, err := s.LockedFor(ctx, identifier); err != nil {
		return err
	} else if locked {
		return &LockedError{RetryAfter: remaining}
	}

	const maxRetries = 4
	key := s.key(identifier)
	providedHash := internal.HashCode(s.config.Secret, code)

	for i := 0; i < maxRetries; i++ {
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			record, err := decodeChallengeRecord(data)
			if err != nil {
				return err
			}

			if time.Now().Unix() > record.ExpiresAt {
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				if err != nil {
					return err
				}
				return ErrChallengeExpired
			}

			if subtle.ConstantTimeCompare(record.CodeHash[:], providedHash[:]) != 1 {
				record.Attempts++
				if int(record.Attempts) >= s.config.MaxAttempts {
					_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
						pipe.Del(ctx, key)
						pipe.Set(ctx, s.lockKey(identifier), "1", s.config.LockoutTTL)
						return nil
					})
					if err != nil {
						return err
					}
					return ErrCodeMismatch
				}

				ttl := time.Until(time.Unix(record.ExpiresAt, 0))
				if ttl <= 0 {
					_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
						pipe.Del(ctx, key)
						return nil
					})
					if err != nil {
						return err
					}
					return ErrChallengeExpired
				}

				updated, err := encodeChallengeRecord(record)
				if err != nil {
					return err
				}
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Set(ctx, key, updated, ttl)
					return nil
				})
				if err != nil {
					return err
				}
				return ErrCodeMismatch
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				return nil
			})
			return err
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			switch {
			case errors.Is(err, redis.Nil):
				return ErrChallengeNotFound
			case errors.Is(err, ErrChallengeExpired), errors.Is(err, ErrCodeMismatch):
				return err
			default:
				return fmt.Errorf("%w: %v", ErrOTPRedisUnavailable, err)
			}
		}
		return nil
	}

	return ErrChallengeNotFound
}

// Lockout forcibly locks the identifier for the given duration, independent
// of its attempt counter. Any live challenge is burned.
func (s *Store) Lockout(ctx context.Context, identifier string, d time.Duration) error {
	if identifier == "" {
		return errors.New("otp identifier is empty")
	}
	if d <= 0 {
		return errors.New("lockout duration must be positive")
	}

	pipe := s.redis.TxPipeline()
	pipe.Del(ctx, s.key(identifier))
	pipe.Set(ctx, s.lockKey(identifier), "1", d)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrOTPRedisUnavailable, err)
	}
	return nil
}

// LockedFor reports whether the identifier is locked and for how long.
func (s *Store) LockedFor(ctx context.Context, identifier string) (time.Duration, bool, error) {
	ttl, err := s.redis.PTTL(ctx, s.lockKey(identifier)).Result()
	if err != nil {
		return 0, false, fmt.Errorf("%w: %v", ErrOTPRedisUnavailable, err)
	}
	if ttl <= 0 {
		// -2 no key, -1 no expiry; a lock without expiry is not produced here.
		return 0, false, nil
	}
	return ttl, true, nil
}

func encodeChallengeRecord(record *challengeRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(challengeRecordVersionV1)
	if err := binary.Write(&buf, binary.BigEndian, record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}
	buf.Write(record.CodeHash[:])

	return buf.Bytes(), nil
}

func decodeChallengeRecord(data []byte) (*challengeRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != challengeRecordVersionV1 {
		return nil, errors.New("invalid otp challenge record version")
	}

	record := &challengeRecord{}
	if err := binary.Read(reader, binary.BigEndian, &record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(reader, record.CodeHash[:]); err != nil {
		return nil, err
	}

	return record, nil
}
