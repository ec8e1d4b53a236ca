// Package checksum fingerprints spool files and HTTP payloads.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// ShortLen is the length of the prefix returned by Short.
const ShortLen = 16

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Short returns the first ShortLen hex digits of Sum, short enough for a
// file name.
func Short(data []byte) string {
	return Sum(data)[:ShortLen]
}

// Matches reports whether prefix is a prefix of data's digest.
func Matches(prefix string, data []byte) bool {
	return prefix != "" && strings.HasPrefix(Sum(data), prefix)
}
