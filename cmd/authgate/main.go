package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/coachbase/authgate"
	"github.com/coachbase/authgate/httpapi"
	"github.com/coachbase/authgate/internal"
	"github.com/coachbase/authgate/password"
)

type envConfig struct {
	Addr      string `env:"AUTHGATE_ADDR" envDefault:":8080"`
	RedisAddr string `env:"AUTHGATE_REDIS_ADDR"`

	SigningMethod string `env:"AUTHGATE_SIGNING_METHOD" envDefault:"hs256"`
	PrivateKey    string `env:"AUTHGATE_PRIVATE_KEY"`
	PublicKey     string `env:"AUTHGATE_PUBLIC_KEY"`
	OTPSecret     string `env:"AUTHGATE_OTP_SECRET"`

	AccessTTL  time.Duration `env:"AUTHGATE_ACCESS_TTL" envDefault:"15m"`
	RefreshTTL time.Duration `env:"AUTHGATE_REFRESH_TTL" envDefault:"168h"`

	CookieDomain string `env:"AUTHGATE_COOKIE_DOMAIN"`
	CookieSecure bool   `env:"AUTHGATE_COOKIE_SECURE" envDefault:"true"`

	LogLevel string `env:"AUTHGATE_LOG_LEVEL" envDefault:"info"`

	// Dev runs against an embedded Redis with generated secrets and seeded
	// demo accounts. Never enable in production.
	Dev bool `env:"AUTHGATE_DEV" envDefault:"false"`
}

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	var cfg envConfig
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	if cfg.Dev {
		if err := fillDevSecrets(&cfg, logger); err != nil {
			return err
		}
	}
	if cfg.RedisAddr == "" {
		return errors.New("AUTHGATE_REDIS_ADDR required (or set AUTHGATE_DEV=true)")
	}
	if cfg.OTPSecret == "" {
		return errors.New("AUTHGATE_OTP_SECRET required")
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	engineCfg := authgate.DefaultConfig()
	engineCfg.Token.AccessTTL = cfg.AccessTTL
	engineCfg.Token.RefreshTTL = cfg.RefreshTTL
	engineCfg.Token.SigningMethod = cfg.SigningMethod
	engineCfg.Token.PrivateKey = []byte(cfg.PrivateKey)
	engineCfg.Token.PublicKey = []byte(cfg.PublicKey)
	engineCfg.OTP.Secret = []byte(cfg.OTPSecret)

	provider := newMemoryProvider()
	if cfg.Dev {
		if err := seedDemoAccounts(provider, engineCfg, logger); err != nil {
			return err
		}
	}

	svc, err := authgate.New().
		WithConfig(engineCfg).
		WithRedis(rdb).
		WithUserProvider(provider).
		WithCodeSender(&logSender{logger: logger, dev: cfg.Dev}).
		WithLogger(logger).
		Build()
	if err != nil {
		return fmt.Errorf("build service: %w", err)
	}

	server := httpapi.NewServer(svc, engineCfg, httpapi.Config{
		Addr: cfg.Addr,
		Cookie: httpapi.CookieConfig{
			Domain: cfg.CookieDomain,
			Secure: cfg.CookieSecure,
		},
	}, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Run() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// fillDevSecrets boots an embedded Redis and generates throwaway secrets for
// anything the environment left blank.
func fillDevSecrets(cfg *envConfig, logger *slog.Logger) error {
	if cfg.RedisAddr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("embedded redis: %w", err)
		}
		cfg.RedisAddr = mr.Addr()
		logger.Info("dev mode: embedded redis", "addr", cfg.RedisAddr)
	}
	if cfg.SigningMethod == "hs256" && cfg.PrivateKey == "" {
		secret, err := internal.NewSecret(32)
		if err != nil {
			return err
		}
		cfg.PrivateKey = string(secret)
		logger.Info("dev mode: generated signing secret")
	}
	if cfg.OTPSecret == "" {
		secret, err := internal.NewSecret(32)
		if err != nil {
			return err
		}
		cfg.OTPSecret = string(secret)
		logger.Info("dev mode: generated otp secret")
	}
	cfg.CookieSecure = false
	return nil
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func seedDemoAccounts(p *memoryProvider, cfg authgate.Config, logger *slog.Logger) error {
	hasher, err := password.NewHasher(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return err
	}

	accounts := []struct {
		identifier string
		pass       string
		role       string
	}{
		{"coach@example.com", "coach-password-1", "admin"},
		{"client@example.com", "client-password-1", "member"},
	}
	for _, a := range accounts {
		hash, err := hasher.Hash(a.pass)
		if err != nil {
			return err
		}
		p.add(authgate.UserRecord{
			SubjectID:    uuid.NewString(),
			Identifier:   a.identifier,
			PasswordHash: hash,
			Role:         a.role,
			Status:       authgate.SubjectActive,
		})
		logger.Info("dev mode: seeded account", "identifier", a.identifier, "role", a.role)
	}
	return nil
}
