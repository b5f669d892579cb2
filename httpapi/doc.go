// Package httpapi exposes the authgate engine over HTTP.
//
// Browser clients authenticate through scoped cookies; non-browser clients
// may present the access token as an Authorization bearer header instead.
// Every route carries a fixed-window rate limit keyed by client IP, and
// engine errors map onto a small set of HTTP statuses with uniform bodies
// that never reveal account existence.
package httpapi
