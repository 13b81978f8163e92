package common

import (
	"crypto/rand"
	"encoding/base64"
)

// GenerateSecret returns n characters of URL-safe Base64 randomness,
// suitable for client secrets and opaque session tokens.
func GenerateSecret(n int) (string, error) {
	// each 3 bytes → 4 Base64 chars
	rawSize := (n*3 + 3) / 4
	raw := make([]byte, rawSize)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	secret := base64.RawURLEncoding.EncodeToString(raw)
	return secret[:n], nil
}
