package authgate

import (
	"errors"
	"time"

	"github.com/coachbase/authgate/rate"
)

// Route names used for per-route rate limiting.
const (
	RouteLogin      = "login"
	RouteRefresh    = "refresh"
	RouteSession    = "session"
	RouteOTPRequest = "otp-request"
	RouteOTPVerify  = "otp-verify"
)

// Config holds engine tuning. Configure once before Build and treat as
// immutable afterwards.
type Config struct {
	Token     TokenConfig
	Session   SessionConfig
	OTP       OTPConfig
	Password  PasswordConfig
	RateLimit RateLimitConfig

	// AdminRole is the role required by administrative operations such as
	// forced OTP lockout.
	AdminRole string
}

// TokenConfig controls signing and token lifetimes.
type TokenConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod string // "ed25519" (default) or "hs256"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Leeway        time.Duration
}

// SessionConfig controls the server-side session store.
type SessionConfig struct {
	RedisPrefix string
}

// OTPConfig controls one-time-code challenges.
type OTPConfig struct {
	CodeDigits  int
	CodeTTL     time.Duration
	MaxAttempts int
	LockoutTTL  time.Duration
	// Secret keys the HMAC under which codes are stored. Required.
	Secret []byte
}

// PasswordConfig holds argon2id cost parameters.
type PasswordConfig struct {
	Memory      uint32 // KiB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// RateLimitConfig maps route names to fixed-window budgets. Routes without
// an entry are unlimited.
type RateLimitConfig struct {
	Windows map[string]rate.Window
}

// DefaultConfig returns production-leaning defaults. Signing keys and the
// OTP secret must still be supplied by the caller.
func DefaultConfig() Config {
	return Config{
		Token: TokenConfig{
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    168 * time.Hour,
			SigningMethod: "ed25519",
			Issuer:        "authgate",
			Leeway:        30 * time.Second,
		},
		Session: SessionConfig{
			RedisPrefix: "asn",
		},
		OTP: OTPConfig{
			CodeDigits:  6,
			CodeTTL:     5 * time.Minute,
			MaxAttempts: 5,
			LockoutTTL:  15 * time.Minute,
		},
		Password: PasswordConfig{
			Memory:      64 * 1024,
			Time:        2,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		RateLimit: RateLimitConfig{
			Windows: map[string]rate.Window{
				RouteLogin:      {MaxRequests: 5, Duration: 15 * time.Minute},
				RouteRefresh:    {MaxRequests: 10, Duration: 5 * time.Minute},
				RouteSession:    {MaxRequests: 30, Duration: time.Minute},
				RouteOTPRequest: {MaxRequests: 3, Duration: 15 * time.Minute},
				RouteOTPVerify:  {MaxRequests: 10, Duration: 15 * time.Minute},
			},
		},
		AdminRole: "admin",
	}
}

// Validate checks the parts of the configuration that Build itself does not
// delegate to subsystem constructors.
func (c Config) Validate() error {
	if c.Token.AccessTTL <= 0 {
		return errors.New("token access ttl must be positive")
	}
	if c.Token.RefreshTTL <= c.Token.AccessTTL {
		return errors.New("token refresh ttl must exceed access ttl")
	}
	if len(c.OTP.Secret) == 0 {
		return errors.New("otp secret required")
	}
	if c.AdminRole == "" {
		return errors.New("admin role required")
	}
	return nil
}
