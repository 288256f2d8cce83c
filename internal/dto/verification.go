package dto

import (
	"time"

	"github.com/noah-isme/credential-ledger-api/internal/models"
)

// VerificationResult is the canonical answer of every verification lookup.
type VerificationResult struct {
	Valid        bool               `json:"valid"`
	Credential   *models.Credential `json:"credential,omitempty"`
	Reason       string             `json:"reason,omitempty"`
	RevokedAt    *time.Time         `json:"revokedAt,omitempty"`
	RevokeReason *string            `json:"revokeReason,omitempty"`
	Ledger       *LedgerStatus      `json:"ledger,omitempty"`
}

// LedgerStatus reports the optional on-ledger cross-check.
type LedgerStatus struct {
	TokenID  string `json:"tokenId"`
	Owner    string `json:"owner,omitempty"`
	Revoked  bool   `json:"revoked"`
	HashSeen bool   `json:"hashMatches"`
}

// ReconcileReport lists differences between the database row and the ledger.
type ReconcileReport struct {
	CredentialID string    `json:"credentialId"`
	TokenID      string    `json:"tokenId,omitempty"`
	InSync       bool      `json:"inSync"`
	Drift        []string  `json:"drift"`
	CheckedAt    time.Time `json:"checkedAt"`
}
