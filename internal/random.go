package internal

import (
	"crypto/rand"
	"math/big"
	"strings"
)

// alphanumeric is the alphabet for session secret tokens and recovery
// codes: uniform over [A-Za-z0-9].
const alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// AlphanumericToken returns a random token of the given length drawn
// character-by-character from crypto/rand, avoiding modulo bias.
func AlphanumericToken(length int) (string, error) {
	var b strings.Builder
	b.Grow(length)

	max := big.NewInt(int64(len(alphanumeric)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(alphanumeric[n.Int64()])
	}

	return b.String(), nil
}

// RecoveryCodes generates a batch of single-use recovery codes.
func RecoveryCodes(count, length int) ([]string, error) {
	codes := make([]string, 0, count)
	for i := 0; i < count; i++ {
		code, err := AlphanumericToken(length)
		if err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, nil
}
