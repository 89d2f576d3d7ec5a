// Package jwt signs and verifies the three bearer-token kinds (access,
// refresh, login) against per-kind secrets, issuers, and expirations with
// strict validation semantics suitable for low-latency authentication paths.
package jwt
