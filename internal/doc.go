// Package internal contains helper utilities that are intentionally private
// to stepauth, including secure random token generation.
//
// # Sub-packages
//
//   - stores — Redis-backed transient stores (pending TOTP secrets)
//
// # What this package must NOT do
//
//   - Export types that appear in the public stepauth API.
//   - Be imported by any package outside the stepauth module.
package internal
