// Package otp stores one-time code challenges for login by identifier
// (phone number or email).
//
// Codes are never stored raw: each challenge holds an HMAC-SHA256 digest of
// the code keyed by a server secret, so a leaked store dump cannot be
// replayed. A challenge is single-use and carries an attempt counter;
// crossing the attempt limit burns the challenge and locks the identifier
// for a cooling-off window. Attempt accounting uses an optimistic WATCH
// transaction so concurrent verifications against one identifier never lose
// an increment.
package otp
