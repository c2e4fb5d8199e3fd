// Package checksum fingerprints serialized outline content.
package checksum

import (
	"encoding/hex"

	"github.com/zeebo/xxh3"
)

// Sum returns the hex-encoded 128-bit xxh3 digest of data.
func Sum(data []byte) string {
	h := xxh3.Hash128(data).Bytes()
	return hex.EncodeToString(h[:])
}

// SumString is Sum for string content.
func SumString(s string) string {
	h := xxh3.HashString128(s).Bytes()
	return hex.EncodeToString(h[:])
}
