// Package session provides Redis-backed session persistence and compact
// binary session encoding for hosts that do not keep session rows in a
// relational store.
//
// # Binary encoding
//
// Records are stored in Redis as a compact binary format with a leading
// schema version byte. The encoder is append-only: new versions add fields
// but never reinterpret old ones.
//
// # Expiry
//
// Every record key carries a Redis TTL equal to its expiration, and the
// record embeds the expiration timestamp as well. Reads treat the embedded
// timestamp as authoritative, so an expired record never resolves even if
// Redis has not evicted it yet. DeleteExpired sweeps dangling index
// entries left behind by TTL eviction.
//
// # Architecture boundaries
//
// This package owns the [Store] (Redis operations) and the [Record] model.
// It does NOT mint tokens, verify credentials, or enforce authentication
// policy — those responsibilities belong to the Engine.
//
// # What this package must NOT do
//
//   - Import stepauth or jwt (no upward imports).
//   - Store bearer tokens; only the opaque secret token is persisted.
package session
