package dedup

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashURL returns the hex-encoded SHA-256 digest of the canonical URL.
// The input is hashed verbatim, so URLs differing only in query or fragment
// produce different digests.
func HashURL(url string) string {
	hash := sha256.Sum256([]byte(url))
	return hex.EncodeToString(hash[:])
}
