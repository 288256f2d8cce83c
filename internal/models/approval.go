package models

import "time"

// ApprovalType enumerates the workflows gated by the approval engine.
type ApprovalType string

const (
	ApprovalTypeCurriculum     ApprovalType = "CURRICULUM"
	ApprovalTypeSemesterResult ApprovalType = "SEMESTER_RESULT"
	ApprovalTypeDegreeProposal ApprovalType = "DEGREE_PROPOSAL"
	ApprovalTypeCorrection     ApprovalType = "CORRECTION"
)

// Valid reports whether the type is one of the known workflows.
func (t ApprovalType) Valid() bool {
	switch t {
	case ApprovalTypeCurriculum, ApprovalTypeSemesterResult, ApprovalTypeDegreeProposal, ApprovalTypeCorrection:
		return true
	default:
		return false
	}
}

// ApprovalStatus captures reviewer decisions. PENDING is the only non-terminal state.
type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "PENDING"
	ApprovalStatusApproved ApprovalStatus = "APPROVED"
	ApprovalStatusRejected ApprovalStatus = "REJECTED"
)

// Terminal reports whether the approval has been decided.
func (s ApprovalStatus) Terminal() bool {
	return s == ApprovalStatusApproved || s == ApprovalStatusRejected
}

// ApprovalDecision is the outcome a reviewer submits.
type ApprovalDecision string

const (
	DecisionApprove ApprovalDecision = "APPROVED"
	DecisionReject  ApprovalDecision = "REJECTED"
)

// Valid reports whether the decision is approve or reject.
func (d ApprovalDecision) Valid() bool {
	return d == DecisionApprove || d == DecisionReject
}

// Status maps the decision onto the approval status it produces.
func (d ApprovalDecision) Status() ApprovalStatus {
	if d == DecisionApprove {
		return ApprovalStatusApproved
	}
	return ApprovalStatusRejected
}

// Entity types referenced by approvals and audit entries.
const (
	EntityDegreeProposal = "degree_proposal"
	EntitySemesterResult = "semester_result"
	EntityCredential     = "credential"
	EntityCurriculum     = "curriculum"
	EntityStudent        = "student"
	EntityShareLink      = "share_link"
)

// Approval is a single reviewer decision at one step of a workflow.
type Approval struct {
	ID         string         `db:"id" json:"id"`
	Type       ApprovalType   `db:"type" json:"type"`
	EntityType string         `db:"entity_type" json:"entityType"`
	EntityID   string         `db:"entity_id" json:"entityId"`
	Step       int            `db:"step" json:"step"`
	Status     ApprovalStatus `db:"status" json:"status"`
	ApproverID *string        `db:"approver_id" json:"approverId,omitempty"`
	DecidedAt  *time.Time     `db:"decided_at" json:"decidedAt,omitempty"`
	Note       *string        `db:"note" json:"note,omitempty"`
	Comments   *string        `db:"comments" json:"comments,omitempty"`
	CreatedAt  time.Time      `db:"created_at" json:"createdAt"`
}

// PendingApprovalCount aggregates open approvals for dashboards.
type PendingApprovalCount struct {
	Type  ApprovalType `db:"type" json:"type"`
	Step  int          `db:"step" json:"step"`
	Count int          `db:"count" json:"count"`
}
