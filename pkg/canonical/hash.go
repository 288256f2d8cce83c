// Package canonical computes content-addressed hashes over RFC 8785 canonical JSON,
// so the same credential payload hashes identically regardless of field order.
package canonical

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gowebpki/jcs"
)

// HashPrefix marks the digest algorithm in stored hashes.
const HashPrefix = "0x"

// Marshal returns the canonical JSON encoding of v.
func Marshal(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonical: marshal: %w", err)
	}
	out, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonical: transform: %w", err)
	}
	return out, nil
}

// Hash returns the 0x-prefixed SHA-256 digest of the canonical encoding of v.
func Hash(v interface{}) (string, error) {
	data, err := Marshal(v)
	if err != nil {
		return "", err
	}
	return HashBytes(data), nil
}

// HashBytes digests already-canonical bytes.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return HashPrefix + hex.EncodeToString(sum[:])
}

// NormalizeHash lower-cases a hash and ensures the 0x prefix. It reports false for
// anything that is not a 32-byte hex digest.
func NormalizeHash(raw string) (string, bool) {
	h := strings.ToLower(strings.TrimSpace(raw))
	h = strings.TrimPrefix(h, HashPrefix)
	if len(h) != sha256.Size*2 {
		return "", false
	}
	if _, err := hex.DecodeString(h); err != nil {
		return "", false
	}
	return HashPrefix + h, true
}

// EqualHash compares two hashes after normalization. Malformed input never matches.
func EqualHash(a, b string) bool {
	na, ok := NormalizeHash(a)
	if !ok {
		return false
	}
	nb, ok := NormalizeHash(b)
	return ok && na == nb
}
