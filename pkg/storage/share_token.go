package storage

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

const nonceBytes = 24

// ShareTokenSigner creates and validates opaque share-link tokens. A token binds
// a random nonce to one credential; the stored share link is still the source of
// truth for expiry and revocation.
type ShareTokenSigner struct {
	secret []byte
}

// NewShareTokenSigner constructs a signer with the provided secret.
func NewShareTokenSigner(secret string) *ShareTokenSigner {
	return &ShareTokenSigner{secret: []byte(secret)}
}

// Generate returns a signed token referencing the credential.
func (s *ShareTokenSigner) Generate(credentialID string) (string, error) {
	if credentialID == "" {
		return "", fmt.Errorf("credentialID required")
	}
	if len(s.secret) == 0 {
		return "", fmt.Errorf("signing secret missing")
	}
	nonce := make([]byte, nonceBytes)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate token nonce: %w", err)
	}
	encodedNonce := base64.RawURLEncoding.EncodeToString(nonce)
	encodedID := base64.RawURLEncoding.EncodeToString([]byte(credentialID))
	signature := s.sign(encodedNonce, encodedID)
	return strings.Join([]string{encodedNonce, encodedID, signature}, "."), nil
}

// Parse validates a token signature and returns the embedded credential id.
func (s *ShareTokenSigner) Parse(token string) (string, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return "", fmt.Errorf("invalid token format")
	}
	encodedNonce, encodedID, signature := parts[0], parts[1], parts[2]

	nonce, err := base64.RawURLEncoding.DecodeString(encodedNonce)
	if err != nil || len(nonce) != nonceBytes {
		return "", fmt.Errorf("invalid token nonce")
	}
	rawID, err := base64.RawURLEncoding.DecodeString(encodedID)
	if err != nil {
		return "", fmt.Errorf("decode credential id: %w", err)
	}
	expected := s.sign(encodedNonce, encodedID)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return "", fmt.Errorf("invalid token signature")
	}
	return string(rawID), nil
}

func (s *ShareTokenSigner) sign(encodedNonce, encodedID string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(encodedNonce + "|" + encodedID))
	return hex.EncodeToString(mac.Sum(nil))
}
