package models

import "time"

// SemesterResultStatus tracks publication of a semester result.
type SemesterResultStatus string

const (
	ResultStatusDraft           SemesterResultStatus = "DRAFT"
	ResultStatusPendingApproval SemesterResultStatus = "PENDING_APPROVAL"
	ResultStatusPublished       SemesterResultStatus = "PUBLISHED"
	ResultStatusRejected        SemesterResultStatus = "REJECTED"
)

// SemesterResult is a student's graded outcome for one semester.
type SemesterResult struct {
	ID            string               `db:"id" json:"id"`
	StudentID     string               `db:"student_id" json:"studentId"`
	Semester      int                  `db:"semester" json:"semester"`
	AcademicYear  int                  `db:"academic_year" json:"academicYear"`
	GPA           float64              `db:"gpa" json:"gpa"`
	Credits       float64              `db:"credits" json:"credits"`
	FailedCourses int                  `db:"failed_courses" json:"failedCourses"`
	Status        SemesterResultStatus `db:"status" json:"status"`
	LedgerTxHash  *string              `db:"ledger_tx_hash" json:"ledgerTxHash,omitempty"`
	CreatedAt     time.Time            `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time            `db:"updated_at" json:"updatedAt"`
}
