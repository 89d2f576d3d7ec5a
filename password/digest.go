package password

import (
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"errors"
	"fmt"
	"hash"

	"golang.org/x/crypto/sha3"
)

// ErrUnknownAlgorithm is returned by [NewHasher] for an unregistered
// algorithm identifier.
var ErrUnknownAlgorithm = errors.New("unknown password hash algorithm")

// algorithms maps configuration identifiers to digest constructors.
var algorithms = map[string]func() hash.Hash{
	"sha256":   sha256.New,
	"sha512":   sha512.New,
	"sha3-256": sha3.New256,
	"sha3-512": sha3.New512,
}

// Supported reports whether algorithm names a registered digest.
func Supported(algorithm string) bool {
	_, ok := algorithms[algorithm]
	return ok
}

// Hasher computes fixed-size unsalted password digests with a configured
// algorithm and compares them in constant time over the full digest length.
type Hasher struct {
	algorithm string
	newHash   func() hash.Hash
}

// NewHasher creates a Hasher for the given algorithm identifier.
func NewHasher(algorithm string) (*Hasher, error) {
	newHash, ok := algorithms[algorithm]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, algorithm)
	}

	return &Hasher{algorithm: algorithm, newHash: newHash}, nil
}

// Algorithm returns the configured algorithm identifier.
func (h *Hasher) Algorithm() string {
	return h.algorithm
}

// Size returns the digest length in bytes.
func (h *Hasher) Size() int {
	return h.newHash().Size()
}

// Hash digests the plaintext. The output length is fixed per algorithm.
func (h *Hasher) Hash(plaintext string) []byte {
	d := h.newHash()
	// hash.Hash.Write never returns an error.
	_, _ = d.Write([]byte(plaintext))
	return d.Sum(nil)
}

// Verify recomputes the digest of candidate and compares it against the
// stored hash. The comparison covers the full digest length regardless of
// where the first mismatching byte sits.
func (h *Hasher) Verify(candidate string, stored []byte) bool {
	computed := h.Hash(candidate)
	if len(stored) != len(computed) {
		return false
	}
	return subtle.ConstantTimeCompare(computed, stored) == 1
}
