package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/credential-ledger-api/internal/models"
)

const studentColumns = `id, user_id, external_identity_id, student_number, full_name, program_id, enrollment_year,
       wallet_address, wallet_id, wallet_created_at, ledger_tx_hash, created_at`

// StudentRepository reads students and writes their wallet and ledger fields.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs the repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// GetByID fetches a student by identifier.
func (r *StudentRepository) GetByID(ctx context.Context, id string) (*models.Student, error) {
	const query = `SELECT ` + studentColumns + ` FROM students WHERE id = $1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// SetWallet persists all wallet fields together, only if none is set yet.
// It reports false when a wallet already existed.
func (r *StudentRepository) SetWallet(ctx context.Context, wallet models.WalletRecord) (bool, error) {
	const query = `UPDATE students SET wallet_address = $1, wallet_id = $2, wallet_created_at = $3
	WHERE id = $4 AND wallet_address IS NULL`
	result, err := r.db.ExecContext(ctx, query, wallet.Address, wallet.WalletID, wallet.CreatedAt, wallet.StudentID)
	if err != nil {
		return false, fmt.Errorf("set student wallet: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check wallet update rows: %w", err)
	}
	return rows == 1, nil
}

// SetLedgerTxHash stores the registration transaction of the student record.
func (r *StudentRepository) SetLedgerTxHash(ctx context.Context, id, txHash string) error {
	const query = `UPDATE students SET ledger_tx_hash = $1 WHERE id = $2`
	return expectOneRow(r.db.ExecContext(ctx, query, txHash, id))
}

// GetAcademicSummary aggregates published results against program requirements.
func (r *StudentRepository) GetAcademicSummary(ctx context.Context, studentID string) (*models.AcademicSummary, error) {
	const query = `SELECT s.id AS student_id, s.program_id,
       COALESCE(SUM(sr.credits) FILTER (WHERE sr.status = 'PUBLISHED'), 0) AS completed_credits,
       COALESCE(SUM(sr.gpa * sr.credits) FILTER (WHERE sr.status = 'PUBLISHED')
                / NULLIF(SUM(sr.credits) FILTER (WHERE sr.status = 'PUBLISHED'), 0), 0) AS cgpa,
       COUNT(sr.id) FILTER (WHERE sr.status = 'PUBLISHED') AS completed_semesters,
       COUNT(sr.id) FILTER (WHERE sr.status IN ('DRAFT', 'PENDING_APPROVAL')) AS pending_results,
       COALESCE(SUM(sr.failed_courses) FILTER (WHERE sr.status = 'PUBLISHED'), 0) AS failed_courses,
       p.required_credits, p.min_cgpa, p.required_semesters, p.max_failed_courses
FROM students s
JOIN programs p ON p.id = s.program_id
LEFT JOIN semester_results sr ON sr.student_id = s.id
WHERE s.id = $1
GROUP BY s.id, s.program_id, p.required_credits, p.min_cgpa, p.required_semesters, p.max_failed_courses`
	var summary models.AcademicSummary
	if err := r.db.GetContext(ctx, &summary, query, studentID); err != nil {
		return nil, err
	}
	return &summary, nil
}
