package authgate

import "context"

// SubjectStatus is the lifecycle state of an account as reported by the
// provider. Anything other than SubjectActive refuses authentication.
type SubjectStatus uint8

const (
	SubjectActive SubjectStatus = iota
	SubjectDisabled
)

// UserRecord is the account record returned by a [UserProvider].
type UserRecord struct {
	SubjectID    string
	Identifier   string
	PasswordHash string // PHC-encoded argon2id hash; empty for OTP-only accounts
	Role         string
	Status       SubjectStatus
}

// UserProvider is the identity backend the engine authenticates against.
// Implementations return [ErrUserNotFound] for unknown lookups and must be
// safe for concurrent use.
type UserProvider interface {
	GetUserByIdentifier(ctx context.Context, identifier string) (UserRecord, error)
	GetUserByID(ctx context.Context, subjectID string) (UserRecord, error)
}

// CodeSender delivers a one-time code to an identifier over an external
// channel. The engine treats delivery failures as request failures.
type CodeSender interface {
	Send(ctx context.Context, identifier, code string) error
}

// Profile is the public view of an authenticated subject.
type Profile struct {
	SubjectID  string `json:"subjectId"`
	Identifier string `json:"identifier"`
	Role       string `json:"role"`
}

// TokenPair is one access token and its paired refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// LoginResult is returned by the credential and one-time-code login paths.
type LoginResult struct {
	Profile Profile
	Tokens  TokenPair
}
