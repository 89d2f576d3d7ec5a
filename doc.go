// Package stepauth provides a step-up authentication engine with a
// multi-hop login state machine, a dual-token session model (access and
// refresh JWTs bound to one server-side session), TOTP and recovery-code
// factors, and a proof-of-work anti-automation gate.
//
// The engine is storage-agnostic: the host supplies [UserStore],
// [AccountStore], and optionally [SessionStore] implementations over its
// own record store. A Redis-backed session store and pending-TOTP store
// are bundled for hosts that want them. Engine methods are safe to call
// from multiple goroutines after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// stepauth is the public surface. It exposes [Engine], [Builder],
// [Config], the store interfaces, and value types (LoginResult,
// MetricsSnapshot, etc.). Token signing, password digests, proof-of-work
// arithmetic, and session encoding live in sub-packages that never
// import this one.
//
// # What this package must NOT do
//
//   - Surface a session secret token to a client outside a signed
//     access or refresh token.
//   - Return a recovery-code batch anywhere except registration and
//     explicit regeneration.
//   - Perform I/O outside of Engine methods (construction via Builder is
//     allocation-only until Build).
//
// # Performance contract
//
// Validate is the hot path: one session-store lookup plus a best-effort
// last-used bump. Login, Refresh, and account operations are allowed a
// handful of store round-trips per call.
package stepauth
