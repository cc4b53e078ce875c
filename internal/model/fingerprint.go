package model

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint derives a stable 64-bit identifier from the given parts.
// The same parts always yield the same id, which is what makes content
// ingestion and work creation idempotent. Parts are separated by a NUL byte
// so ("ab","c") and ("a","bc") hash differently.
func Fingerprint(parts ...string) string {
	h := xxhash.New()
	for _, p := range parts {
		h.WriteString(p)
		h.Write([]byte{0})
	}
	return strconv.FormatUint(h.Sum64(), 16)
}
