package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashFingerprint derives a stable visitor fingerprint from the client IP
// and user agent. The salt keeps raw addresses out of storage.
func HashFingerprint(salt, ip, userAgent string) string {
	sum := sha256.Sum256([]byte(salt + "|" + ip + "|" + userAgent))
	return hex.EncodeToString(sum[:])
}

// HashIP hashes a bare client IP with the same salt.
func HashIP(salt, ip string) string {
	sum := sha256.Sum256([]byte(salt + "|" + ip))
	return hex.EncodeToString(sum[:])
}
