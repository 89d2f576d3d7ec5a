// Package stores provides Redis-backed, short-lived record stores for
// security-sensitive authentication flows, currently the pending TOTP
// secrets of the enrollment handshake.
//
// # Design
//
// Each store persists a versioned, binary-encoded record in Redis with a
// TTL matching its embedded expiry. The embedded expiry is authoritative
// on read: a record found past it is deleted and reported as absent, so a
// lagging Redis TTL can never resurrect an entry.
//
// # Architecture boundaries
//
// This package owns persistence for transient enrollment records. It does
// NOT generate secrets or make authentication decisions — those belong to
// the Engine.
//
// # What this package must NOT do
//
//   - Import stepauth or any sibling internal package.
//   - Log or expose plaintext secrets.
package stores
