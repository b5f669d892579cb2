package authgate

import "errors"

var (
	// ErrInvalidCredentials covers every credential-login failure that must
	// not reveal whether the account exists.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthorized is returned when a request carries no usable credential.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden is returned when a valid credential lacks the required role.
	ErrForbidden = errors.New("forbidden")
	// ErrTokenInvalid is returned for malformed, tampered, or mismatched tokens.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenExpired is returned for well-formed tokens past their lifetime.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenRevoked is returned for tokens explicitly revoked before expiry.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrSessionNotFound is returned when a refresh token has no live session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrUserNotFound is the sentinel a [UserProvider] returns for unknown
	// identifiers and IDs.
	ErrUserNotFound = errors.New("user not found")
	// ErrServiceNotReady is returned when a Service method is called on an
	// engine that was never built.
	ErrServiceNotReady = errors.New("service not initialized")
)
