package ledger

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidDigestLen is returned when a signer is handed something other than a SHA-256 digest.
var ErrInvalidDigestLen = errors.New("ledger: digest must be 32 bytes")

// Signer is the single custodial key allowed to write to the ledger.
type Signer interface {
	Address() string
	Sign(digest []byte) ([]byte, error)
}

// Ed25519Signer signs call envelopes with an Ed25519 key.
type Ed25519Signer struct {
	key     ed25519.PrivateKey
	address string
}

// NewEd25519Signer derives the key from a hex-encoded 32-byte seed.
func NewEd25519Signer(seedHex string) (*Ed25519Signer, error) {
	seed, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(seedHex), "0x"))
	if err != nil {
		return nil, fmt.Errorf("decode signer seed: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("signer seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	key := ed25519.NewKeyFromSeed(seed)
	pub := key.Public().(ed25519.PublicKey)
	sum := Keccak256(pub)
	return &Ed25519Signer{key: key, address: "0x" + hex.EncodeToString(sum[12:])}, nil
}

// Address returns the 20-byte account derived from the public key.
func (s *Ed25519Signer) Address() string {
	return s.address
}

// PublicKey exposes the verification key.
func (s *Ed25519Signer) PublicKey() ed25519.PublicKey {
	return s.key.Public().(ed25519.PublicKey)
}

// Sign signs a SHA-256 digest.
func (s *Ed25519Signer) Sign(digest []byte) ([]byte, error) {
	if len(digest) != sha256.Size {
		return nil, ErrInvalidDigestLen
	}
	return ed25519.Sign(s.key, digest), nil
}
