// Package revocation maintains the shared set of explicitly invalidated
// token strings. Membership alone is sufficient to reject reuse; entries
// carry the source token's own remaining lifetime as their Redis TTL, so a
// revoked token is forgotten exactly when its natural expiry would have
// rejected it anyway.
package revocation
