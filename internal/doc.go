// Package internal holds random-material and hashing helpers shared by the
// authgate packages. Nothing here is part of the public API.
package internal
