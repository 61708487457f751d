package utils

import (
	"crypto/rand"
	"encoding/base64"
)

// AccessTokenBytes is the entropy of a download link token.
const AccessTokenBytes = 32

// GenerateSecureToken returns length random bytes encoded as unpadded base64url.
func GenerateSecureToken(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func GenerateAccessToken() (string, error) {
	return GenerateSecureToken(AccessTokenBytes)
}
