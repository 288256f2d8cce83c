package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/credential-ledger-api/internal/models"
)

const semesterResultColumns = `id, student_id, semester, academic_year, gpa, credits, failed_courses, status, ledger_tx_hash, created_at, updated_at`

// SemesterResultRepository reads semester results and applies their publication transitions.
type SemesterResultRepository struct {
	db *sqlx.DB
}

// NewSemesterResultRepository constructs the repository.
func NewSemesterResultRepository(db *sqlx.DB) *SemesterResultRepository {
	return &SemesterResultRepository{db: db}
}

// GetByID fetches a result by identifier.
func (r *SemesterResultRepository) GetByID(ctx context.Context, id string) (*models.SemesterResult, error) {
	const query = `SELECT ` + semesterResultColumns + ` FROM semester_results WHERE id = $1`
	var result models.SemesterResult
	if err := r.db.GetContext(ctx, &result, query, id); err != nil {
		return nil, err
	}
	return &result, nil
}

// Transition moves a result between statuses; sql.ErrNoRows when it moved already.
func (r *SemesterResultRepository) Transition(ctx context.Context, id string, from, to models.SemesterResultStatus) error {
	const query = `UPDATE semester_results SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`
	return expectOneRow(r.db.ExecContext(ctx, query, to, time.Now().UTC(), id, from))
}

// SetLedgerTxHash stores the transaction that anchored the report.
func (r *SemesterResultRepository) SetLedgerTxHash(ctx context.Context, id, txHash string) error {
	const query = `UPDATE semester_results SET ledger_tx_hash = $1, updated_at = $2 WHERE id = $3`
	return expectOneRow(r.db.ExecContext(ctx, query, txHash, time.Now().UTC(), id))
}
