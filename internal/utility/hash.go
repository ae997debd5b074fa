package utility

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Sum64 - stable 64-bit hash of the string
func Sum64(s string) uint64 {
	return xxhash.Sum64String(s)
}

// Digest - sha256 over the parts, each prefixed with its length so that
// ("ab", "c") and ("a", "bc") never collide
func Digest(parts ...string) string {
	h := sha256.New()

	var size [8]byte
	for _, part := range parts {
		binary.BigEndian.PutUint64(size[:], uint64(len(part)))
		h.Write(size[:])
		h.Write([]byte(part))
	}

	return fmt.Sprintf("%x", h.Sum(nil))
}
