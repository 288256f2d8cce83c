package models

import (
	"encoding/json"
	"time"
)

// JobType tags the payload of a pipeline job.
type JobType string

const (
	JobTypeMint                 JobType = "mint"
	JobTypeRevoke               JobType = "revoke"
	JobTypeCreateStudentWallet  JobType = "createStudentWallet"
	JobTypeRegisterStudent      JobType = "registerStudent"
	JobTypeSubmitSemesterReport JobType = "submitSemesterReport"
)

// Queue names. Ledger writes share one serialized queue; wallet provisioning runs in parallel.
const (
	QueueLedger  = "ledger"
	QueueWallets = "wallets"
)

// Queue returns the queue a job type runs on.
func (t JobType) Queue() string {
	switch t {
	case JobTypeCreateStudentWallet:
		return QueueWallets
	case JobTypeMint, JobTypeRevoke, JobTypeRegisterStudent, JobTypeSubmitSemesterReport:
		return QueueLedger
	default:
		return ""
	}
}

// JobRecordStatus is the outcome recorded for a pipeline execution.
type JobRecordStatus string

const (
	JobRecordPending   JobRecordStatus = "PENDING"
	JobRecordCompleted JobRecordStatus = "COMPLETED"
	JobRecordFailed    JobRecordStatus = "FAILED"
)

// JobRecord is the append-only audit row of a pipeline job. PENDING rows are
// written when a request enqueues work; workers append COMPLETED or FAILED rows.
type JobRecord struct {
	ID          string          `db:"id" json:"id"`
	JobID       string          `db:"job_id" json:"jobId"`
	Type        JobType         `db:"type" json:"type"`
	Status      JobRecordStatus `db:"status" json:"status"`
	EntityID    string          `db:"entity_id" json:"entityId"`
	Output      json.RawMessage `db:"output" json:"output,omitempty"`
	Attempts    int             `db:"attempts" json:"attempts"`
	Error       *string         `db:"error" json:"error,omitempty"`
	CompletedAt *time.Time      `db:"completed_at" json:"completedAt,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"createdAt"`
}

// MintRequest is an outstanding mint: a PENDING credential whose latest recorded
// mint request has no outcome yet.
type MintRequest struct {
	CredentialID string `db:"credential_id"`
	DocumentHash string `db:"document_hash"`
	JobID        string `db:"job_id"`
}

// JobPayload is implemented by every job body; the type tag travels with it.
type JobPayload interface {
	JobType() JobType
}

// MintPayload asks the ledger worker to mint a credential token.
type MintPayload struct {
	CredentialID  string            `json:"credentialId"`
	StudentWallet string            `json:"studentWallet,omitempty"`
	DocumentHash  string            `json:"documentHash"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// JobType implements JobPayload.
func (MintPayload) JobType() JobType { return JobTypeMint }

// RevokePayload asks the ledger worker to revoke a credential token.
type RevokePayload struct {
	CredentialID  string `json:"credentialId"`
	TokenID       string `json:"tokenId"`
	Reason        string `json:"reason"`
	Replace       bool   `json:"replace,omitempty"`
	ReplacementID string `json:"replacementId,omitempty"`
}

// JobType implements JobPayload.
func (RevokePayload) JobType() JobType { return JobTypeRevoke }

// WalletPayload asks the wallet worker to provision a custodial wallet.
type WalletPayload struct {
	StudentID          string `json:"studentId"`
	UserID             string `json:"userId"`
	ExternalIdentityID string `json:"externalIdentityId"`
}

// JobType implements JobPayload.
func (WalletPayload) JobType() JobType { return JobTypeCreateStudentWallet }

// RegisterStudentPayload asks the ledger worker to register a student record.
type RegisterStudentPayload struct {
	StudentID string `json:"studentId"`
}

// JobType implements JobPayload.
func (RegisterStudentPayload) JobType() JobType { return JobTypeRegisterStudent }

// SemesterReportPayload asks the ledger worker to anchor a published semester result.
type SemesterReportPayload struct {
	ResultID string `json:"resultId"`
}

// JobType implements JobPayload.
func (SemesterReportPayload) JobType() JobType { return JobTypeSubmitSemesterReport }

// JobReceipt is returned to callers that enqueued work.
type JobReceipt struct {
	JobID    string  `json:"jobId"`
	Type     JobType `json:"type"`
	Queue    string  `json:"queue"`
	EntityID string  `json:"entityId"`
}
