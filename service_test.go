package authgate

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/coachbase/authgate/otp"
	"github.com/coachbase/authgate/password"
	"github.com/coachbase/authgate/rate"
)

type memoryProvider struct {
	users map[string]UserRecord // keyed by identifier
}

func (p *memoryProvider) GetUserByIdentifier(_ context.Context, identifier string) (UserRecord, error) {
	user, ok := p.users[identifier]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	return user, nil
}

func (p *memoryProvider) GetUserByID(_ context.Context, subjectID string) (UserRecord, error) {
	for _, user := range p.users {
		if user.SubjectID == subjectID {
			return user, nil
		}
	}
	return UserRecord{}, ErrUserNotFound
}

type captureSender struct {
	lastTo   string
	lastCode string
	fail     bool
}

func (c *captureSender) Send(_ context.Context, identifier, code string) error {
	if c.fail {
		return errors.New("delivery channel down")
	}
	c.lastTo = identifier
	c.lastCode = code
	return nil
}

func testServiceConfig() Config {
	cfg := DefaultConfig()
	cfg.Token.SigningMethod = "hs256"
	cfg.Token.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.OTP.Secret = []byte("test-otp-secret")
	cfg.Password = PasswordConfig{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   16,
	}
	return cfg
}

func newServiceTest(t *testing.T, mutate func(*Config)) (*Service, *memoryProvider, *captureSender, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	cfg := testServiceConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	hasher, err := password.NewHasher(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		t.Fatalf("test hasher: %v", err)
	}
	memberHash, err := hasher.Hash("member-password")
	if err != nil {
		t.Fatalf("hash member password: %v", err)
	}
	adminHash, err := hasher.Hash("admin-password")
	if err != nil {
		t.Fatalf("hash admin password: %v", err)
	}

	provider := &memoryProvider{users: map[string]UserRecord{
		"member@example.com": {
			SubjectID:    uuid.NewString(),
			Identifier:   "member@example.com",
			PasswordHash: memberHash,
			Role:         "member",
			Status:       SubjectActive,
		},
		"admin@example.com": {
			SubjectID:    uuid.NewString(),
			Identifier:   "admin@example.com",
			PasswordHash: adminHash,
			Role:         "admin",
			Status:       SubjectActive,
		},
		"disabled@example.com": {
			SubjectID:    uuid.NewString(),
			Identifier:   "disabled@example.com",
			PasswordHash: memberHash,
			Role:         "member",
			Status:       SubjectDisabled,
		},
	}}
	sender := &captureSender{}

	svc, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserProvider(provider).
		WithCodeSender(sender).
		WithLogger(slog.Default()).
		Build()
	if err != nil {
		t.Fatalf("build service: %v", err)
	}

	return svc, provider, sender, mr
}

func TestLoginIssuesTokensAndSession(t *testing.T) {
	svc, _, _, _ := newServiceTest(t, nil)
	ctx := context.Background()

	result, err := svc.Login(ctx, "member@example.com", "member-password")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if result.Tokens.AccessToken == "" || result.Tokens.RefreshToken == "" {
		t.Fatal("login returned empty tokens")
	}
	if result.Tokens.AccessToken == result.Tokens.RefreshToken {
		t.Fatal("access and refresh tokens are identical")
	}
	if result.Profile.Role != "member" {
		t.Fatalf("profile role = %q", result.Profile.Role)
	}

	profile, err := svc.Profile(ctx, result.Tokens.AccessToken)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if profile.Identifier != "member@example.com" {
		t.Fatalf("profile identifier = %q", profile.Identifier)
	}
}

func TestLoginFailuresAreGeneric(t *testing.T) {
	svc, _, _, _ := newServiceTest(t, nil)
	ctx := context.Background()

	cases := []struct {
		name       string
		identifier string
		password   string
	}{
		{"unknown identifier", "nobody@example.com", "member-password"},
		{"wrong password", "member@example.com", "not-the-password"},
		{"disabled account", "disabled@example.com", "member-password"},
		{"empty password", "member@example.com", ""},
	}
	for _, tc := range cases {
		_, err := svc.Login(ctx, tc.identifier, tc.password)
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("%s: expected ErrInvalidCredentials, got %v", tc.name, err)
		}
	}
}

func TestVerifyAccessRejectsRefreshToken(t *testing.T) {
	svc, _, _, _ := newServiceTest(t, nil)
	ctx := context.Background()

	result, err := svc.Login(ctx, "member@example.com", "member-password")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	_, err = svc.VerifyAccess(ctx, result.Tokens.RefreshToken)
	if !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for refresh token, got %v", err)
	}
}

func TestVerifyAccessExpiredToken(t *testing.T) {
	svc, _, _, _ := newServiceTest(t, func(cfg *Config) {
		cfg.Token.AccessTTL = time.Nanosecond
		cfg.Token.RefreshTTL = time.Hour
		cfg.Token.Leeway = 0
	})
	ctx := context.Background()

	result, err := svc.Login(ctx, "member@example.com", "member-password")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	time.Sleep(10 * time.Millisecond)

	_, err = svc.VerifyAccess(ctx, result.Tokens.AccessToken)
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestRefreshKeepsRefreshTokenValid(t *testing.T) {
	svc, _, _, _ := newServiceTest(t, nil)
	ctx := context.Background()

	result, err := svc.Login(ctx, "member@example.com", "member-password")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	first, err := svc.Refresh(ctx, result.Tokens.RefreshToken)
	if err != nil {
		t.Fatalf("first refresh: %v", err)
	}
	if first == "" {
		t.Fatal("refresh returned empty access token")
	}
	if _, err := svc.VerifyAccess(ctx, first); err != nil {
		t.Fatalf("refreshed access token rejected: %v", err)
	}

	// The same refresh token keeps working until expiry or revocation.
	second, err := svc.Refresh(ctx, result.Tokens.RefreshToken)
	if err != nil {
		t.Fatalf("second refresh: %v", err)
	}
	if _, err := svc.VerifyAccess(ctx, second); err != nil {
		t.Fatalf("second refreshed token rejected: %v", err)
	}
}

func TestRefreshWithoutToken(t *testing.T) {
	svc, _, _, _ := newServiceTest(t, nil)

	_, err := svc.Refresh(context.Background(), "")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestRefreshWithoutSession(t *testing.T) {
	svc, _, _, mr := newServiceTest(t, nil)
	ctx := context.Background()

	result, err := svc.Login(ctx, "member@example.com", "member-password")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	// Drop all server-side state; the signed refresh token alone is not enough.
	mr.FlushAll()

	_, err = svc.Refresh(ctx, result.Tokens.RefreshToken)
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestLogoutInvalidatesEverything(t *testing.T) {
	svc, _, _, _ := newServiceTest(t, nil)
	ctx := context.Background()

	result, err := svc.Login(ctx, "member@example.com", "member-password")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	svc.Logout(ctx, result.Tokens.AccessToken, result.Tokens.RefreshToken)

	_, err = svc.VerifyAccess(ctx, result.Tokens.AccessToken)
	if !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("access token after logout: expected ErrTokenRevoked, got %v", err)
	}

	_, err = svc.Refresh(ctx, result.Tokens.RefreshToken)
	if !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("refresh token after logout: expected ErrTokenRevoked, got %v", err)
	}
}

func TestLogoutIdempotent(t *testing.T) {
	svc, _, _, _ := newServiceTest(t, nil)
	ctx := context.Background()

	result, err := svc.Login(ctx, "member@example.com", "member-password")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	svc.Logout(ctx, result.Tokens.AccessToken, result.Tokens.RefreshToken)
	svc.Logout(ctx, result.Tokens.AccessToken, result.Tokens.RefreshToken)
	svc.Logout(ctx, "", "")
}

func TestOTPLoginFlow(t *testing.T) {
	svc, _, sender, _ := newServiceTest(t, nil)
	ctx := context.Background()

	if err := svc.RequestOTP(ctx, "member@example.com"); err != nil {
		t.Fatalf("request otp: %v", err)
	}
	if sender.lastTo != "member@example.com" || sender.lastCode == "" {
		t.Fatalf("code not delivered: to=%q code=%q", sender.lastTo, sender.lastCode)
	}

	result, err := svc.VerifyOTP(ctx, "member@example.com", sender.lastCode)
	if err != nil {
		t.Fatalf("verify otp: %v", err)
	}
	if result.Profile.Identifier != "member@example.com" {
		t.Fatalf("profile identifier = %q", result.Profile.Identifier)
	}

	// The code logged the subject in like a credential login would.
	if _, err := svc.Profile(ctx, result.Tokens.AccessToken); err != nil {
		t.Fatalf("profile with otp-issued token: %v", err)
	}
	if _, err := svc.Refresh(ctx, result.Tokens.RefreshToken); err != nil {
		t.Fatalf("refresh with otp-issued token: %v", err)
	}
}

func TestOTPRequestNeverRevealsExistence(t *testing.T) {
	svc, _, sender, _ := newServiceTest(t, nil)
	ctx := context.Background()

	// Unknown identifiers get a challenge and a delivery attempt all the same.
	if err := svc.RequestOTP(ctx, "stranger@example.com"); err != nil {
		t.Fatalf("request otp for unknown identifier: %v", err)
	}
	if sender.lastTo != "stranger@example.com" {
		t.Fatalf("no delivery for unknown identifier")
	}

	_, err := svc.VerifyOTP(ctx, "stranger@example.com", sender.lastCode)
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound after correct code, got %v", err)
	}
}

func TestOTPRequestDeliveryFailure(t *testing.T) {
	svc, _, sender, _ := newServiceTest(t, nil)
	sender.fail = true

	if err := svc.RequestOTP(context.Background(), "member@example.com"); err == nil {
		t.Fatal("expected error when delivery fails")
	}
}

func TestOTPWrongCodesLockIdentifier(t *testing.T) {
	svc, _, sender, _ := newServiceTest(t, nil)
	ctx := context.Background()

	if err := svc.RequestOTP(ctx, "member@example.com"); err != nil {
		t.Fatalf("request otp: %v", err)
	}

	wrong := "000000"
	if wrong == sender.lastCode {
		wrong = "000001"
	}
	for i := 0; i < 5; i++ {
		_, err := svc.VerifyOTP(ctx, "member@example.com", wrong)
		if !errors.Is(err, otp.ErrCodeMismatch) {
			t.Fatalf("attempt %d: expected mismatch, got %v", i+1, err)
		}
	}

	_, err := svc.VerifyOTP(ctx, "member@example.com", sender.lastCode)
	if !errors.Is(err, otp.ErrLocked) {
		t.Fatalf("expected ErrLocked after attempt limit, got %v", err)
	}
}

func TestLockoutOTPRequiresAdmin(t *testing.T) {
	svc, _, sender, _ := newServiceTest(t, nil)
	ctx := context.Background()

	member, err := svc.Login(ctx, "member@example.com", "member-password")
	if err != nil {
		t.Fatalf("member login: %v", err)
	}
	admin, err := svc.Login(ctx, "admin@example.com", "admin-password")
	if err != nil {
		t.Fatalf("admin login: %v", err)
	}

	err = svc.LockoutOTP(ctx, member.Tokens.AccessToken, "member@example.com", time.Hour)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for member, got %v", err)
	}

	if err := svc.LockoutOTP(ctx, admin.Tokens.AccessToken, "member@example.com", time.Hour); err != nil {
		t.Fatalf("admin lockout: %v", err)
	}

	if err := svc.RequestOTP(ctx, "member@example.com"); err != nil {
		t.Fatalf("request otp: %v", err)
	}
	_, err = svc.VerifyOTP(ctx, "member@example.com", sender.lastCode)
	if !errors.Is(err, otp.ErrLocked) {
		t.Fatalf("expected ErrLocked after forced lockout, got %v", err)
	}
}

func TestRateLimiting(t *testing.T) {
	svc, _, _, _ := newServiceTest(t, func(cfg *Config) {
		cfg.RateLimit.Windows = map[string]rate.Window{
			RouteLogin: {MaxRequests: 2, Duration: time.Minute},
		}
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := svc.CheckRate(ctx, RouteLogin, "1.2.3.4"); err != nil {
			t.Fatalf("request %d: %v", i+1, err)
		}
	}
	err := svc.CheckRate(ctx, RouteLogin, "1.2.3.4")
	if !errors.Is(err, rate.ErrRateLimited) {
		t.Fatalf("expected rate limit, got %v", err)
	}
}

func TestServiceNotReady(t *testing.T) {
	var svc *Service
	ctx := context.Background()

	if _, err := svc.Login(ctx, "a", "b"); !errors.Is(err, ErrServiceNotReady) {
		t.Fatalf("login: %v", err)
	}
	if _, err := svc.Refresh(ctx, "t"); !errors.Is(err, ErrServiceNotReady) {
		t.Fatalf("refresh: %v", err)
	}
	if err := svc.RequestOTP(ctx, "a"); !errors.Is(err, ErrServiceNotReady) {
		t.Fatalf("request otp: %v", err)
	}
}

func TestBuilderValidation(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	provider := &memoryProvider{users: map[string]UserRecord{}}
	sender := &captureSender{}

	if _, err := New().WithConfig(testServiceConfig()).WithUserProvider(provider).WithCodeSender(sender).Build(); err == nil {
		t.Fatal("expected error without redis")
	}
	if _, err := New().WithConfig(testServiceConfig()).WithRedis(rdb).WithCodeSender(sender).Build(); err == nil {
		t.Fatal("expected error without user provider")
	}
	if _, err := New().WithConfig(testServiceConfig()).WithRedis(rdb).WithUserProvider(provider).Build(); err == nil {
		t.Fatal("expected error without code sender")
	}

	bad := testServiceConfig()
	bad.OTP.Secret = nil
	if _, err := New().WithConfig(bad).WithRedis(rdb).WithUserProvider(provider).WithCodeSender(sender).Build(); err == nil {
		t.Fatal("expected error without otp secret")
	}

	b := New().WithConfig(testServiceConfig()).WithRedis(rdb).WithUserProvider(provider).WithCodeSender(sender)
	if _, err := b.Build(); err != nil {
		t.Fatalf("first build: %v", err)
	}
	if _, err := b.Build(); err == nil {
		t.Fatal("expected error reusing builder")
	}
}
