// Package middleware exposes HTTP adapters over [stepauth.Engine]
// validation.
//
// # Guards
//
//   - [Require] — rejects requests without a valid access token.
//   - [Optional] — validates when a token is present, passes through
//     otherwise.
//
// Each guard reads the Authorization header, calls Engine.Validate, and
// injects the authenticated identity into the request context along with
// the client IP and user agent for audit attribution.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement authentication logic itself — all decisions are delegated to
// Engine.Validate.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to Engine).
//   - Touch the session store (Engine handles I/O).
//   - Make authorization decisions beyond pass/reject from
//     Engine.Validate.
package middleware
