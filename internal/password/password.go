// Package password implements credential hashing with argon2id and the
// random-password generation used to equalize login timing.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/argon2"
)

// ErrHash indicates an internal failure while hashing (e.g. the RNG).
// Callers must not surface whether the failure was input-related.
var ErrHash = errors.New("password hashing failed")

// argon2id cost parameters, fixed process-wide.
const (
	memoryKiB   = 64 * 1024
	timeCost    = 3
	parallelism = 4
	saltLength  = 16
	keyLength   = 32
)

// charset for generated passwords: alphanumerics plus common symbols.
const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%^&*()-_=+"

// DefaultGeneratedLength is the length of generated random passwords.
const DefaultGeneratedLength = 12

// Hash derives an argon2id digest of password and encodes it in the standard
// "$argon2id$v=19$m=...,t=...,p=...$salt$hash" form.
func Hash(password string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		slog.Error("password hash salt generation failed", "error", err)
		return "", ErrHash
	}

	key := argon2.IDKey([]byte(password), salt, timeCost, memoryKiB, parallelism, keyLength)

	encoded := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, memoryKiB, timeCost, parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)
	return encoded, nil
}

// Verify reports whether password matches the encoded digest. It never
// returns an error: malformed digests and internal failures are logged and
// treated as a mismatch, so authentication fails closed.
func Verify(password, encoded string) bool {
	salt, key, params, err := decode(encoded)
	if err != nil {
		slog.Error("password verify failed", "error", err)
		return false
	}

	candidate := argon2.IDKey([]byte(password), salt, params.time, params.memory, params.threads, uint32(len(key)))
	return subtle.ConstantTimeCompare(candidate, key) == 1
}

// GenerateRandom returns a random password of the given length drawn from the
// charset using crypto/rand. Used to burn hashing work on the failed-login
// path and to mint initial credentials during seeding. Bytes outside the
// largest multiple of len(charset) are rejected so every character is
// equally likely.
func GenerateRandom(length int) (string, error) {
	if length <= 0 {
		length = DefaultGeneratedLength
	}

	// 231 = 3 * 77; bytes >= 231 would bias the low characters.
	const limit = byte(len(charset) * (256 / len(charset)))

	out := make([]byte, 0, length)
	buf := make([]byte, length*2)
	for len(out) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("generating random password: %w", err)
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			out = append(out, charset[int(b)%len(charset)])
			if len(out) == length {
				break
			}
		}
	}
	return string(out), nil
}

type hashParams struct {
	memory  uint32
	time    uint32
	threads uint8
}

// decode parses a PHC-encoded argon2id digest into its salt, key and cost
// parameters.
func decode(encoded string) ([]byte, []byte, hashParams, error) {
	var p hashParams

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return nil, nil, p, fmt.Errorf("malformed digest")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, nil, p, fmt.Errorf("parsing version: %w", err)
	}
	if version != argon2.Version {
		return nil, nil, p, fmt.Errorf("unsupported argon2 version %d", version)
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &p.threads); err != nil {
		return nil, nil, p, fmt.Errorf("parsing parameters: %w", err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, nil, p, fmt.Errorf("decoding salt: %w", err)
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, nil, p, fmt.Errorf("decoding key: %w", err)
	}
	if len(key) == 0 {
		return nil, nil, p, fmt.Errorf("empty key")
	}

	return salt, key, p, nil
}
