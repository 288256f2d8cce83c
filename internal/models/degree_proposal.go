package models

import "time"

// DegreeProposalStatus tracks the two-stage degree ratification.
type DegreeProposalStatus string

const (
	DegreeStatusDraft           DegreeProposalStatus = "DRAFT"
	DegreeStatusPendingAcademic DegreeProposalStatus = "PENDING_ACADEMIC"
	DegreeStatusPendingAdmin    DegreeProposalStatus = "PENDING_ADMIN"
	DegreeStatusApproved        DegreeProposalStatus = "APPROVED"
	DegreeStatusRejected        DegreeProposalStatus = "REJECTED"
	DegreeStatusIssued          DegreeProposalStatus = "ISSUED"
)

// CanTransitionTo reports whether the proposal may move from s to next.
func (s DegreeProposalStatus) CanTransitionTo(next DegreeProposalStatus) bool {
	switch s {
	case DegreeStatusDraft:
		return next == DegreeStatusPendingAcademic
	case DegreeStatusPendingAcademic:
		return next == DegreeStatusPendingAdmin || next == DegreeStatusRejected
	case DegreeStatusPendingAdmin:
		return next == DegreeStatusApproved || next == DegreeStatusRejected
	case DegreeStatusApproved:
		return next == DegreeStatusIssued
	case DegreeStatusRejected, DegreeStatusIssued:
		return false
	default:
		return false
	}
}

// ReviewStep returns the approval step that gates the status, or 0 when the
// status is not awaiting review.
func (s DegreeProposalStatus) ReviewStep() int {
	switch s {
	case DegreeStatusPendingAcademic:
		return 1
	case DegreeStatusPendingAdmin:
		return 2
	default:
		return 0
	}
}

// DegreeProposal requests a degree credential for a graduating student.
type DegreeProposal struct {
	ID           string               `db:"id" json:"id"`
	StudentID    string               `db:"student_id" json:"studentId"`
	ExpectedYear int                  `db:"expected_year" json:"expectedYear"`
	Status       DegreeProposalStatus `db:"status" json:"status"`
	CredentialID *string              `db:"credential_id" json:"credentialId,omitempty"`
	CreatedBy    string               `db:"created_by" json:"createdBy"`
	CreatedAt    time.Time            `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time            `db:"updated_at" json:"updatedAt"`
}

// EligibilityReport explains whether a student may be proposed for a degree.
type EligibilityReport struct {
	StudentID          string   `json:"studentId"`
	Eligible           bool     `json:"eligible"`
	CompletedCredits   float64  `json:"completedCredits"`
	RequiredCredits    float64  `json:"requiredCredits"`
	CGPA               float64  `json:"cgpa"`
	MinCGPA            float64  `json:"minCgpa"`
	CompletedSemesters int      `json:"completedSemesters"`
	RequiredSemesters  int      `json:"requiredSemesters"`
	PendingResults     int      `json:"pendingResults"`
	FailedCourses      int      `json:"failedCourses"`
	MaxFailedCourses   int      `json:"maxFailedCourses"`
	Issues             []string `json:"issues"`
}
