// Package session tracks the server-side record behind each refresh token:
// which subject it belongs to and when it stops being honored.
//
// Sessions are keyed by a digest of the refresh token, one session per
// token, many sessions per subject (multi-device). Expiry is enforced
// lazily: a record whose ExpiresAt has passed is treated as absent by every
// reader even if Redis has not physically evicted it yet. The stored expiry
// is authoritative in addition to the refresh token's own exp claim.
package session
