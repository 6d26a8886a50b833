// Package auth provides authentication primitives for the boundary: API key
// generation, parsing, and validation. Keys are long-lived tokens stored only
// as bcrypt hashes; the key string embeds the record id so verification is a
// single lookup plus one bcrypt comparison.
// See internal/middleware/auth.go for the request-time authentication logic
// that uses these primitives.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	// APIKeyLength is the length of the random part of the API key in bytes
	APIKeyLength = 32

	// DisplayPrefixLength is the number of characters to show in displays
	DisplayPrefixLength = 10

	// BcryptCost is the cost factor for bcrypt hashing
	BcryptCost = 12
)

// GenerateAPIKey creates a new random API key of the form
// <prefix>_<keyID>_<random>. keyID is the id of the api_keys record the key
// belongs to (a UUID, which never contains underscores), letting the
// verifier find the record without scanning hashes.
// Returns: full key (to show once) and its bcrypt hash (to store).
func GenerateAPIKey(prefix, keyID string) (key string, hash string, err error) {
	if strings.Contains(keyID, "_") {
		return "", "", fmt.Errorf("key id %q must not contain underscores", keyID)
	}

	randomBytes := make([]byte, APIKeyLength)
	if _, err = rand.Read(randomBytes); err != nil {
		return "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	randomPart := base64.RawURLEncoding.EncodeToString(randomBytes)

	fullKey := fmt.Sprintf("%s%s_%s", prefix, keyID, randomPart)

	hashBytes, err := bcrypt.GenerateFromPassword(keyDigest(fullKey), BcryptCost)
	if err != nil {
		return "", "", fmt.Errorf("failed to hash API key: %w", err)
	}

	return fullKey, string(hashBytes), nil
}

// keyDigest condenses a full key to a fixed-length input for bcrypt, which
// rejects passwords longer than 72 bytes. A full key (prefix + UUID key id +
// 43-char random part) is well past that limit.
func keyDigest(key string) []byte {
	sum := sha256.Sum256([]byte(key))
	return []byte(base64.RawStdEncoding.EncodeToString(sum[:]))
}

// ParseKeyID extracts the embedded record id from a full API key.
// The key format is <prefix>keyID_random where prefix itself ends in an
// underscore (e.g. "adk_"). The random part is base64url, whose alphabet
// includes '_', so only the first two separators are structural.
func ParseKeyID(key string) (string, error) {
	parts := strings.SplitN(key, "_", 3)
	if len(parts) != 3 || parts[1] == "" || parts[2] == "" {
		return "", errors.New("malformed API key")
	}
	return parts[1], nil
}

// DisplayPrefix returns the first characters of a key for safe display.
func DisplayPrefix(key string) string {
	if len(key) > DisplayPrefixLength {
		return key[:DisplayPrefixLength]
	}
	return key
}

// ValidateAPIKey checks if a provided key matches the stored hash
func ValidateAPIKey(providedKey, storedHash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(storedHash), keyDigest(providedKey))
	return err == nil
}

// ExtractAPIKeyFromHeader extracts the API key from an Authorization header.
// Expected format: "Bearer adk_abc123xyz..."
func ExtractAPIKeyFromHeader(header string) (string, error) {
	if header == "" {
		return "", errors.New("authorization header is empty")
	}

	if !strings.HasPrefix(header, "Bearer ") {
		return "", errors.New("authorization header must start with 'Bearer '")
	}

	key := strings.TrimPrefix(header, "Bearer ")
	key = strings.TrimSpace(key)

	if key == "" {
		return "", errors.New("API key is empty after Bearer prefix")
	}

	return key, nil
}
