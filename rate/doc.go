// Package rate enforces fixed-window request budgets per (route, identifier)
// pair using Redis counters. The first hit in a window sets the window TTL;
// the counter simply expires when the window closes. A limited caller learns
// how long to wait, rounded up to whole seconds.
package rate
