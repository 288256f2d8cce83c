package models

import "time"

// Student is the slice of the student record the issuance pipeline needs.
type Student struct {
	ID                 string     `db:"id" json:"id"`
	UserID             string     `db:"user_id" json:"userId"`
	ExternalIdentityID string     `db:"external_identity_id" json:"externalIdentityId"`
	StudentNumber      string     `db:"student_number" json:"studentNumber"`
	FullName           string     `db:"full_name" json:"fullName"`
	ProgramID          string     `db:"program_id" json:"programId"`
	EnrollmentYear     int        `db:"enrollment_year" json:"enrollmentYear"`
	WalletAddress      *string    `db:"wallet_address" json:"walletAddress,omitempty"`
	WalletID           *string    `db:"wallet_id" json:"walletId,omitempty"`
	WalletCreatedAt    *time.Time `db:"wallet_created_at" json:"walletCreatedAt,omitempty"`
	LedgerTxHash       *string    `db:"ledger_tx_hash" json:"ledgerTxHash,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"createdAt"`
}

// HasWallet reports whether a wallet has been provisioned.
func (s Student) HasWallet() bool {
	return s.WalletAddress != nil && *s.WalletAddress != ""
}

// Wallet returns the provisioned wallet, or nil.
func (s Student) Wallet() *WalletRecord {
	if !s.HasWallet() {
		return nil
	}
	w := &WalletRecord{StudentID: s.ID, Address: *s.WalletAddress}
	if s.WalletID != nil {
		w.WalletID = *s.WalletID
	}
	if s.WalletCreatedAt != nil {
		w.CreatedAt = *s.WalletCreatedAt
	}
	return w
}

// WalletRecord is the set-once wallet slice of a student.
type WalletRecord struct {
	StudentID string    `json:"studentId"`
	Address   string    `json:"walletAddress"`
	WalletID  string    `json:"walletId"`
	CreatedAt time.Time `json:"walletCreatedAt"`
}

// AcademicSummary aggregates a student's record against program requirements.
type AcademicSummary struct {
	StudentID          string  `db:"student_id" json:"studentId"`
	ProgramID          string  `db:"program_id" json:"programId"`
	CompletedCredits   float64 `db:"completed_credits" json:"completedCredits"`
	CGPA               float64 `db:"cgpa" json:"cgpa"`
	CompletedSemesters int     `db:"completed_semesters" json:"completedSemesters"`
	PendingResults     int     `db:"pending_results" json:"pendingResults"`
	FailedCourses      int     `db:"failed_courses" json:"failedCourses"`
	RequiredCredits    float64 `db:"required_credits" json:"requiredCredits"`
	MinCGPA            float64 `db:"min_cgpa" json:"minCgpa"`
	RequiredSemesters  int     `db:"required_semesters" json:"requiredSemesters"`
	MaxFailedCourses   int     `db:"max_failed_courses" json:"maxFailedCourses"`
}
