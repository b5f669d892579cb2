// Package token mints and verifies the signed, expiring credentials used by
// authgate: short-lived access tokens and longer-lived refresh tokens.
//
// The Issuer is stateless and safe for unsynchronized concurrent use. It
// trusts no claim before the signature validates, and it deliberately knows
// nothing about revocation — membership in the revocation list is a
// shared-state lookup that the service layers on top, after the cheap local
// checks here have passed.
package token
