package authgate

import (
	"errors"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/coachbase/authgate/otp"
	"github.com/coachbase/authgate/password"
	"github.com/coachbase/authgate/rate"
	"github.com/coachbase/authgate/revocation"
	"github.com/coachbase/authgate/session"
	"github.com/coachbase/authgate/token"
)

// Builder assembles a [Service]. A Builder is single-use.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	userProvider UserProvider
	codeSender   CodeSender
	logger       *slog.Logger

	built bool
}

// New returns a Builder carrying [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the builder's configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis sets the Redis client backing all shared state.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithUserProvider sets the identity backend.
func (b *Builder) WithUserProvider(up UserProvider) *Builder {
	b.userProvider = up
	return b
}

// WithCodeSender sets the one-time-code delivery channel.
func (b *Builder) WithCodeSender(cs CodeSender) *Builder {
	b.codeSender = cs
	return b
}

// WithLogger sets the structured logger. Defaults to slog.Default.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// Build validates the configuration, wires the subsystems, and returns the
// Service.
func (b *Builder) Build() (*Service, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.userProvider == nil {
		return nil, errors.New("user provider required")
	}
	if b.codeSender == nil {
		return nil, errors.New("code sender required")
	}
	if err := b.config.Validate(); err != nil {
		return nil, err
	}

	issuer, err := token.NewIssuer(token.Config{
		SigningMethod: token.SigningMethod(b.config.Token.SigningMethod),
		PrivateKey:    b.config.Token.PrivateKey,
		PublicKey:     b.config.Token.PublicKey,
		Issuer:        b.config.Token.Issuer,
		Leeway:        b.config.Token.Leeway,
	})
	if err != nil {
		return nil, err
	}

	hasher, err := password.NewHasher(password.Config{
		Memory:      b.config.Password.Memory,
		Time:        b.config.Password.Time,
		Parallelism: b.config.Password.Parallelism,
		SaltLength:  b.config.Password.SaltLength,
		KeyLength:   b.config.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	challenges, err := otp.NewStore(b.redis, otp.Config{
		CodeDigits:  b.config.OTP.CodeDigits,
		CodeTTL:     b.config.OTP.CodeTTL,
		MaxAttempts: b.config.OTP.MaxAttempts,
		LockoutTTL:  b.config.OTP.LockoutTTL,
		Secret:      b.config.OTP.Secret,
	})
	if err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	b.built = true

	return &Service{
		config:     b.config,
		logger:     logger,
		provider:   b.userProvider,
		sender:     b.codeSender,
		issuer:     issuer,
		revoked:    revocation.NewList(b.redis, ""),
		sessions:   session.NewStore(b.redis, b.config.Session.RedisPrefix),
		challenges: challenges,
		limiter:    rate.New(b.redis, b.config.RateLimit.Windows),
		hasher:     hasher,
	}, nil
}
