package models

import "time"

// AuditAction constants represent actions to be logged.
const (
	AuditActionApprovalCreate   = "APPROVAL_CREATE"
	AuditActionApprovalReview   = "APPROVAL_REVIEW"
	AuditActionProposalCreate   = "DEGREE_PROPOSAL_CREATE"
	AuditActionProposalSubmit   = "DEGREE_PROPOSAL_SUBMIT"
	AuditActionProposalReview   = "DEGREE_PROPOSAL_REVIEW"
	AuditActionCredentialCreate = "CREDENTIAL_CREATE"
	AuditActionCredentialIssue  = "CREDENTIAL_ISSUE"
	AuditActionCredentialRevoke = "CREDENTIAL_REVOKE"
	AuditActionCredentialMinted = "CREDENTIAL_MINTED"
	AuditActionCredentialVoided = "CREDENTIAL_REVOKED"
	AuditActionWalletCreated    = "WALLET_CREATED"
	AuditActionShareLinkCreate  = "SHARE_LINK_CREATE"
	AuditActionShareLinkRevoke  = "SHARE_LINK_REVOKE"
	AuditActionJobFailed        = "JOB_FAILED"
)

// SystemActor attributes actions taken by background workers.
const SystemActor = "system"

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	ActorID    string    `db:"actor_id" json:"actorId"`
	Action     string    `db:"action" json:"action"`
	EntityType string    `db:"entity_type" json:"entityType"`
	EntityID   string    `db:"entity_id" json:"entityId"`
	Metadata   []byte    `db:"metadata" json:"metadata,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}
