// Package pow implements the proof-of-work difficulty gate: a client must
// find a string whose SHA-512 digest has at least N leading zero bits before
// the server accepts it as an anti-automation proof.
//
// # Architecture boundaries
//
// This package is pure computation over its inputs. Storage of accepted
// proofs and the monotonic difficulty floor live in the Engine.
//
// # What this package must NOT do
//
//   - Perform I/O or read configuration.
//   - Import any other stepauth package.
package pow
