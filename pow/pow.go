package pow

import (
	"crypto/sha512"
	"math"
	"math/bits"
	"time"
)

// Hash computes the SHA-512 digest of data. Every difficulty computation in
// this package is defined over this digest.
func Hash(data string) [sha512.Size]byte {
	return sha512.Sum512([]byte(data))
}

// Difficulty counts the consecutive leading zero bits of Hash(data),
// scanning most-significant-bit-first. Scanning stops at the first set bit.
func Difficulty(data string) int {
	digest := Hash(data)

	count := 0
	for _, b := range digest {
		if b == 0 {
			count += 8
			continue
		}
		count += bits.LeadingZeros8(b)
		break
	}
	return count
}

// Check reports whether the first difficulty bits of Hash(data) are all
// zero. Check(data, 0) is always true.
func Check(data string, difficulty int) bool {
	if difficulty <= 0 {
		return true
	}
	if difficulty > sha512.Size*8 {
		return false
	}

	digest := Hash(data)

	fullBytes := difficulty / 8
	for i := 0; i < fullBytes; i++ {
		if digest[i] != 0 {
			return false
		}
	}

	if rem := difficulty % 8; rem != 0 {
		if digest[fullBytes]>>(8-rem) != 0 {
			return false
		}
	}
	return true
}

// EstimateWork returns the expected number of hash attempts to find a
// string of the given difficulty: 2^difficulty.
func EstimateWork(difficulty int) float64 {
	return math.Pow(2, float64(difficulty))
}

// EstimateDuration converts EstimateWork into wall time at the given hash
// rate in hashes per second. Reporting only; nothing enforces it.
func EstimateDuration(difficulty int, hashesPerSecond float64) time.Duration {
	if hashesPerSecond <= 0 {
		return 0
	}
	seconds := EstimateWork(difficulty) / hashesPerSecond
	return time.Duration(seconds * float64(time.Second))
}
