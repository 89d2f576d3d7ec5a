// Package password implements password hashing and verification with a
// configurable one-way digest.
//
// # Output format
//
// Hashes are raw digest bytes of a fixed per-algorithm length; no salt or
// parameter string is embedded. The algorithm identifier lives in engine
// configuration, so every account in one deployment shares one algorithm.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Password policy (minimum
// length, current-password checks) is enforced by the Engine.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords — callers supply plaintext and receive hashes.
//   - Import any other stepauth package.
//   - Log plaintext passwords at runtime.
package password
