// Package checksum fingerprints file contents for change detection.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Equal reports whether data still matches a fingerprint taken earlier.
// An empty fingerprint never matches.
func Equal(fingerprint string, data []byte) bool {
	return fingerprint != "" && Sum(data) == fingerprint
}
