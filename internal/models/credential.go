package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// CredentialType enumerates issuable academic artifacts.
type CredentialType string

const (
	CredentialTypeSemester    CredentialType = "SEMESTER"
	CredentialTypeDegree      CredentialType = "DEGREE"
	CredentialTypeCertificate CredentialType = "CERTIFICATE"
)

// Valid reports whether the type is known.
func (t CredentialType) Valid() bool {
	switch t {
	case CredentialTypeSemester, CredentialTypeDegree, CredentialTypeCertificate:
		return true
	default:
		return false
	}
}

// CredentialStatus is the lifecycle state of a credential.
type CredentialStatus string

const (
	CredentialStatusPending  CredentialStatus = "PENDING"
	CredentialStatusIssued   CredentialStatus = "ISSUED"
	CredentialStatusRevoked  CredentialStatus = "REVOKED"
	CredentialStatusReplaced CredentialStatus = "REPLACED"
)

// Valid reports whether s is a known status.
func (s CredentialStatus) Valid() bool {
	switch s {
	case CredentialStatusPending, CredentialStatusIssued, CredentialStatusRevoked, CredentialStatusReplaced:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether the credential may move from s to next.
func (s CredentialStatus) CanTransitionTo(next CredentialStatus) bool {
	switch s {
	case CredentialStatusPending:
		return next == CredentialStatusIssued
	case CredentialStatusIssued:
		return next == CredentialStatusRevoked || next == CredentialStatusReplaced
	case CredentialStatusRevoked, CredentialStatusReplaced:
		return false
	default:
		return false
	}
}

// HoldsToken reports whether a credential in this status carries a ledger token.
// TokenID and TxHash are set iff HoldsToken: ISSUED, REVOKED and REPLACED
// credentials keep the reference of the token they were minted with.
func (s CredentialStatus) HoldsToken() bool {
	switch s {
	case CredentialStatusIssued, CredentialStatusRevoked, CredentialStatusReplaced:
		return true
	default:
		return false
	}
}

// Withdrawn reports whether the credential was revoked or replaced.
func (s CredentialStatus) Withdrawn() bool {
	return s == CredentialStatusRevoked || s == CredentialStatusReplaced
}

// Credential is the backend record of an academic artifact bound at most once to a ledger token.
type Credential struct {
	ID           string            `db:"id" json:"id"`
	StudentID    string            `db:"student_id" json:"studentId"`
	Type         CredentialType    `db:"type" json:"type"`
	Status       CredentialStatus  `db:"status" json:"status"`
	SourceID     string            `db:"source_id" json:"sourceId"`
	DocumentHash string            `db:"document_hash" json:"documentHash"`
	Payload      CredentialPayload `db:"payload" json:"payload"`
	TokenID      *string           `db:"token_id" json:"tokenId,omitempty"`
	TxHash       *string           `db:"tx_hash" json:"txHash,omitempty"`
	IssuedAt     *time.Time        `db:"issued_at" json:"issuedAt,omitempty"`
	RevokedAt    *time.Time        `db:"revoked_at" json:"revokedAt,omitempty"`
	RevokeReason *string           `db:"revoke_reason" json:"revokeReason,omitempty"`
	ReplacedBy   *string           `db:"replaced_by" json:"replacedBy,omitempty"`
	CreatedBy    string            `db:"created_by" json:"createdBy"`
	CreatedAt    time.Time         `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time         `db:"updated_at" json:"updatedAt"`
}

// CredentialPayload is the canonical document whose hash anchors the credential.
type CredentialPayload struct {
	CredentialID string            `json:"credentialId"`
	Type         CredentialType    `json:"type"`
	StudentID    string            `json:"studentId"`
	StudentName  string            `json:"studentName"`
	ProgramID    string            `json:"programId,omitempty"`
	SourceID     string            `json:"sourceId"`
	Title        string            `json:"title"`
	Attributes   map[string]string `json:"attributes,omitempty"`
	IssuedFor    string            `json:"issuedFor,omitempty"`
}

// Value marshals the payload to JSON for persistence.
func (p CredentialPayload) Value() (driver.Value, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal credential payload: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSONB into the payload.
func (p *CredentialPayload) Scan(value interface{}) error {
	if value == nil {
		*p = CredentialPayload{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for CredentialPayload", value)
	}
	if len(data) == 0 {
		*p = CredentialPayload{}
		return nil
	}
	if err := json.Unmarshal(data, p); err != nil {
		return fmt.Errorf("unmarshal credential payload: %w", err)
	}
	return nil
}

// CredentialIssued carries the ledger identifiers written by a successful mint.
type CredentialIssued struct {
	CredentialID string
	TokenID      string
	TxHash       string
	IssuedAt     time.Time
}

// CredentialWithdrawn carries the fields written by a successful revoke.
type CredentialWithdrawn struct {
	CredentialID string
	Status       CredentialStatus
	Reason       string
	RevokedAt    time.Time
}

// CredentialFilter constrains listing queries.
type CredentialFilter struct {
	StudentID string
	Status    []CredentialStatus
	Type      CredentialType
	Limit     int
}
