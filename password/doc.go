// Package password hashes and verifies login credentials with argon2id.
// Hashes are serialized in PHC string format so parameters travel with the
// hash and verification never depends on current server configuration.
package password
