package credentials

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// SaltLength is the number of random bytes in a generated salt
const SaltLength = 12

// GenerateSalt produces a fresh random salt, base64 encoded
func GenerateSalt() (string, error) {
	buf := make([]byte, SaltLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

// HashPassword computes the hex digest of an HMAC-SHA256 keyed by the
// plaintext and salt. Deterministic for the same inputs, so it serves both
// credential storage and verification.
//
// An empty plaintext is rejected: hashing it would yield a fixed digest that
// an attacker could match with an empty sign-in attempt.
func HashPassword(salt, plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrEmptyPassword
	}
	if salt == "" {
		return "", ErrEmptySalt
	}

	mac := hmac.New(sha256.New, []byte(plaintext+salt))
	digest := mac.Sum(nil)
	return hex.EncodeToString(digest), nil
}

// VerifyPassword reports whether plaintext hashes to the stored digest under
// the given salt. Comparison is constant-time.
func VerifyPassword(salt, plaintext, storedDigest string) bool {
	digest, err := HashPassword(salt, plaintext)
	if err != nil {
		return false
	}
	return hmac.Equal([]byte(digest), []byte(storedDigest))
}
