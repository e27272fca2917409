package schedulerweb

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/scrypt"
)

const (
	scryptN    = 16384
	scryptR    = 8
	scryptP    = 1
	keyLength  = 64
	saltLength = 16
)

// NewSalt returns a fresh random salt, base64 encoded.
func NewSalt() (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	return base64.StdEncoding.EncodeToString(salt), nil
}

// HashSecret derives the stored hash for a device secret and base64 salt.
func HashSecret(secret, saltB64 string) (string, error) {
	salt, err := base64.StdEncoding.DecodeString(saltB64)
	if err != nil {
		return "", fmt.Errorf("failed to decode salt: %w", err)
	}
	key, err := scrypt.Key([]byte(secret), salt, scryptN, scryptR, scryptP, keyLength)
	if err != nil {
		return "", fmt.Errorf("failed to derive key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

// VerifySecret reports whether secret matches the stored salt and hash.
// The hash comparison is constant time.
func VerifySecret(secret, saltB64, hashB64 string) bool {
	derived, err := HashSecret(secret, saltB64)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(derived), []byte(hashB64)) == 1
}
