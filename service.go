package authgate

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/coachbase/authgate/otp"
	"github.com/coachbase/authgate/password"
	"github.com/coachbase/authgate/rate"
	"github.com/coachbase/authgate/revocation"
	"github.com/coachbase/authgate/session"
	"github.com/coachbase/authgate/token"
)

// Service is the authentication engine. Build one through [Builder]; the
// zero value is not usable. All methods are safe for concurrent use.
type Service struct {
	config     Config
	logger     *slog.Logger
	provider   UserProvider
	sender     CodeSender
	issuer     *token.Issuer
	revoked    *revocation.List
	sessions   *session.Store
	challenges *otp.Store
	limiter    *rate.Limiter
	hasher     *password.Hasher
}

func (s *Service) ready() error {
	if s == nil || s.provider == nil {
		return ErrServiceNotReady
	}
	return nil
}

// CheckRate records one hit against the route's budget for the identifier.
// Returns a rate.LimitedError when the budget is exhausted.
func (s *Service) CheckRate(ctx context.Context, route, identifier string) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.limiter.Check(ctx, route, identifier)
}

// Login authenticates an identifier/password pair. Unknown identifiers,
// wrong passwords, and inactive accounts all collapse into
// [ErrInvalidCredentials] so the response never reveals account existence.
func (s *Service) Login(ctx context.Context, identifier, pass string) (*LoginResult, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if identifier == "" || pass == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.provider.GetUserByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if user.Status != SubjectActive || user.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}

	ok, err := s.hasher.Verify(pass, user.PasswordHash)
	if err != nil {
		s.logger.Warn("stored password hash unverifiable", "subject", user.SubjectID, "error", err)
		return nil, ErrInvalidCredentials
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	return s.startSession(ctx, user)
}

// VerifyAccess validates an access token: signature and expiry first, then
// the revocation list. Returns the verified claims.
func (s *Service) VerifyAccess(ctx context.Context, accessToken string) (*token.Claims, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if accessToken == "" {
		return nil, ErrUnauthorized
	}

	claims, err := s.issuer.Verify(accessToken, token.KindAccess)
	if err != nil {
		return nil, mapTokenError(err)
	}

	revoked, err := s.revoked.Contains(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrTokenRevoked
	}

	return claims, nil
}

// Profile resolves an access token to the subject's public profile. Tokens
// whose subject no longer exists or is inactive are refused.
func (s *Service) Profile(ctx context.Context, accessToken string) (*Profile, error) {
	claims, err := s.VerifyAccess(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	user, err := s.provider.GetUserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	if user.Status != SubjectActive {
		return nil, ErrUnauthorized
	}

	return &Profile{
		SubjectID:  user.SubjectID,
		Identifier: user.Identifier,
		Role:       user.Role,
	}, nil
}

// Refresh exchanges a live refresh token for a new access token. The refresh
// token itself is not rotated; it stays valid until its own expiry, logout,
// or revocation. Check order: presence, revocation, signature and expiry,
// session, subject.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, error) {
	if err := s.ready(); err != nil {
		return "", err
	}
	if refreshToken == "" {
		return "", ErrUnauthorized
	}

	revoked, err := s.revoked.Contains(ctx, refreshToken)
	if err != nil {
		return "", err
	}
	if revoked {
		return "", ErrTokenRevoked
	}

	claims, err := s.issuer.Verify(refreshToken, token.KindRefresh)
	if err != nil {
		return "", mapTokenError(err)
	}

	sess, err := s.sessions.FindByRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return "", ErrSessionNotFound
		}
		return "", err
	}

	user, err := s.provider.GetUserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return "", ErrUnauthorized
		}
		return "", err
	}
	if user.Status != SubjectActive {
		return "", ErrUnauthorized
	}

	return s.issuer.Issue(sess.SubjectID, sess.Role, token.KindAccess, s.config.Token.AccessTTL)
}

// Logout tears down a session: both presented tokens are revoked for their
// remaining lifetimes and the session record is deleted. Logout never fails
// toward the caller; cleanup problems are logged and swallowed so a client
// can always discard its credentials.
func (s *Service) Logout(ctx context.Context, accessToken, refreshToken string) {
	if s.ready() != nil {
		return
	}

	if accessToken != "" {
		ttl := s.remainingLifetime(accessToken, token.KindAccess, s.config.Token.AccessTTL)
		if err := s.revoked.Add(ctx, accessToken, ttl); err != nil {
			s.logger.Warn("logout: access token revocation failed", "error", err)
		}
	}

	if refreshToken != "" {
		ttl := s.remainingLifetime(refreshToken, token.KindRefresh, s.config.Token.RefreshTTL)
		if err := s.revoked.Add(ctx, refreshToken, ttl); err != nil {
			s.logger.Warn("logout: refresh token revocation failed", "error", err)
		}
		if err := s.sessions.DeleteByRefreshToken(ctx, refreshToken); err != nil {
			s.logger.Warn("logout: session deletion failed", "error", err)
		}
	}
}

// RequestOTP generates a challenge for the identifier and hands the code to
// the sender. The identity backend is deliberately not consulted: the
// response is identical for known and unknown identifiers.
func (s *Service) RequestOTP(ctx context.Context, identifier string) error {
	if err := s.ready(); err != nil {
		return err
	}

	code, err := s.challenges.Generate(ctx, identifier)
	if err != nil {
		return err
	}
	return s.sender.Send(ctx, identifier, code)
}

// VerifyOTP checks a submitted code and, on success, logs the identifier's
// account in exactly as a credential login would. Challenge failures pass
// through as otp sentinels. A correct code for an identifier the provider
// does not know yields [ErrUserNotFound].
func (s *Service) VerifyOTP(ctx context.Context, identifier, code string) (*LoginResult, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	if err := s.challenges.Verify(ctx, identifier, code); err != nil {
		return nil, err
	}

	user, err := s.provider.GetUserByIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if user.Status != SubjectActive {
		return nil, ErrInvalidCredentials
	}

	return s.startSession(ctx, user)
}

// LockoutOTP force-locks an identifier's one-time-code verification. The
// caller must present an access token carrying the admin role.
func (s *Service) LockoutOTP(ctx context.Context, accessToken, identifier string, d time.Duration) error {
	claims, err := s.VerifyAccess(ctx, accessToken)
	if err != nil {
		return err
	}
	if claims.Role != s.config.AdminRole {
		return ErrForbidden
	}
	if d <= 0 {
		d = s.config.OTP.LockoutTTL
	}

	if err := s.challenges.Lockout(ctx, identifier, d); err != nil {
		return err
	}
	s.logger.Info("otp lockout forced", "identifier", identifier, "duration", d, "by", claims.Subject)
	return nil
}

func (s *Service) startSession(ctx context.Context, user UserRecord) (*LoginResult, error) {
	access, err := s.issuer.Issue(user.SubjectID, user.Role, token.KindAccess, s.config.Token.AccessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := s.issuer.Issue(user.SubjectID, user.Role, token.KindRefresh, s.config.Token.RefreshTTL)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Create(ctx, refresh, user.SubjectID, user.Role, s.config.Token.RefreshTTL); err != nil {
		return nil, err
	}

	return &LoginResult{
		Profile: Profile{
			SubjectID:  user.SubjectID,
			Identifier: user.Identifier,
			Role:       user.Role,
		},
		Tokens: TokenPair{
			AccessToken:  access,
			RefreshToken: refresh,
		},
	}, nil
}

// remainingLifetime bounds a revocation entry to the token's own expiry. A
// token that no longer verifies still gets the fallback so revocation at the
// boundary cannot be dodged with a mangled token.
func (s *Service) remainingLifetime(tok string, kind token.Kind, fallback time.Duration) time.Duration {
	claims, err := s.issuer.Verify(tok, kind)
	if err != nil {
		return fallback
	}
	if claims.ExpiresAt == nil {
		return fallback
	}
	remaining := time.Until(claims.ExpiresAt.Time)
	if remaining <= 0 || remaining > fallback {
		return fallback
	}
	return remaining
}

func mapTokenError(err error) error {
	switch {
	case errors.Is(err, token.ErrExpired):
		return ErrTokenExpired
	case errors.Is(err, token.ErrInvalid):
		return ErrTokenInvalid
	default:
		return err
	}
}
