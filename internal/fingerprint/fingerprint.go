// Package fingerprint computes content-identity digests for change detection.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hasher implements books.Hasher using SHA-256.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash returns the hex digest of the input. Equal content always yields
// equal digests; the digest is the sole identity for "has this page changed".
func (h *Hasher) Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
