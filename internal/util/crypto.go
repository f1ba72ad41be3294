package util

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

const fingerprintLength = 12

func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// Fingerprint identifies a secret in logs without revealing it.
func Fingerprint(secret string) string {
	if secret == "" {
		return ""
	}
	return HashToken(secret)[:fingerprintLength]
}

func ConstantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
