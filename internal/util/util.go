// Package util provides hashing and time helpers shared across the engine.
package util

import (
	"encoding/hex"
	"time"

	"lukechampine.com/blake3"
)

// Blake3HashHex returns the hex-encoded BLAKE3-256 digest of data.
func Blake3HashHex(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ShortHash truncates a hex digest or commit hash to n characters.
// Hashes shorter than n are returned unchanged.
func ShortHash(hash string, n int) string {
	if len(hash) <= n {
		return hash
	}
	return hash[:n]
}

// NowMs returns the current time in milliseconds since epoch.
func NowMs() int64 {
	return time.Now().UnixMilli()
}
