package dto

import (
	"time"

	"github.com/noah-isme/credential-ledger-api/internal/models"
)

// CreateCredentialRequest requests a new PENDING credential.
type CreateCredentialRequest struct {
	StudentID  string                `json:"studentId" validate:"required"`
	Type       models.CredentialType `json:"type" validate:"required,oneof=SEMESTER DEGREE CERTIFICATE"`
	SourceID   string                `json:"sourceId" validate:"required"`
	Title      string                `json:"title" validate:"max=200"`
	Attributes map[string]string     `json:"attributes" validate:"max=32"`
}

// RevokeCredentialRequest carries the revocation reason.
type RevokeCredentialRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// CreateShareLinkRequest creates a public verification link.
type CreateShareLinkRequest struct {
	TTL *Duration `json:"ttl"`
}

// Duration accepts Go duration strings such as "72h" in JSON bodies.
type Duration struct {
	time.Duration
}

// UnmarshalJSON parses a quoted duration string.
func (d *Duration) UnmarshalJSON(b []byte) error {
	if len(b) < 2 || b[0] != '"' || b[len(b)-1] != '"' {
		return &time.ParseError{Layout: "duration", Value: string(b)}
	}
	parsed, err := time.ParseDuration(string(b[1 : len(b)-1]))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// IssueCredentialResponse reports the jobs enqueued for an issuance.
type IssueCredentialResponse struct {
	Credential *models.Credential  `json:"credential"`
	Jobs       []models.JobReceipt `json:"jobs"`
}

// ReplaceCredentialResponse returns the new credential and the revoke job for the old one.
type ReplaceCredentialResponse struct {
	Replacement *models.Credential `json:"replacement"`
	Job         models.JobReceipt  `json:"job"`
}

// CredentialListQuery filters the credential listing.
type CredentialListQuery struct {
	StudentID string `form:"studentId"`
	Status    string `form:"status"`
	Type      string `form:"type"`
	Limit     int    `form:"limit" binding:"omitempty,min=1,max=500"`
}
