// Package id generates prefixed opaque identifiers for database entities,
// e.g. "user_a7Bf92kQ1xWz" or "sess_T3mN8pLc0yHd".
package id

import (
	"crypto/rand"
	"fmt"
)

// alphabet deliberately excludes symbols so ids stay URL- and log-safe.
const alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// randomLength is the number of random characters after the prefix.
const randomLength = 12

// New returns a new identifier of the form "<prefix>_<12 random chars>".
func New(prefix string) (string, error) {
	suffix, err := randomString(randomLength)
	if err != nil {
		return "", fmt.Errorf("generating id: %w", err)
	}
	return prefix + "_" + suffix, nil
}

// MustNew is New but panics on RNG failure. Only for use in places where an
// exhausted entropy source is already fatal (seeding, tests).
func MustNew(prefix string) string {
	s, err := New(prefix)
	if err != nil {
		panic(err)
	}
	return s
}

// randomString draws n characters from the alphabet using crypto/rand.
// Bytes outside the largest multiple of len(alphabet) are rejected so every
// character is equally likely.
func randomString(n int) (string, error) {
	// 248 = 4 * 62; bytes >= 248 would bias the low characters.
	const limit = byte(len(alphabet) * (256 / len(alphabet)))

	out := make([]byte, 0, n)
	buf := make([]byte, n*2)
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			out = append(out, alphabet[int(b)%len(alphabet)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}
