// Package authgate is a session and token-lifecycle engine for
// authentication flows: credential and one-time-code login, short-lived
// access tokens with long-lived refresh tokens, server-side sessions,
// explicit revocation, and per-route rate limiting.
//
// The engine owns no user database. Callers plug in a [UserProvider] for
// identity lookups and a [CodeSender] for one-time-code delivery, hand over
// a Redis client for shared state, and get back a [Service] built through
// [Builder]:
//
//	svc, err := authgate.New().
//		WithConfig(cfg).
//		WithRedis(rdb).
//		WithUserProvider(provider).
//		WithCodeSender(sender).
//		Build()
package authgate
