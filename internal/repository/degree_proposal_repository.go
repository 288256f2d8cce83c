package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/credential-ledger-api/internal/models"
)

const proposalColumns = `id, student_id, expected_year, status, credential_id, created_by, created_at, updated_at`

// DegreeProposalRepository persists degree proposals.
type DegreeProposalRepository struct {
	db *sqlx.DB
}

// NewDegreeProposalRepository constructs the repository.
func NewDegreeProposalRepository(db *sqlx.DB) *DegreeProposalRepository {
	return &DegreeProposalRepository{db: db}
}

// Create inserts a proposal in DRAFT unless another status is set.
func (r *DegreeProposalRepository) Create(ctx context.Context, proposal *models.DegreeProposal) error {
	if proposal.ID == "" {
		proposal.ID = uuid.NewString()
	}
	if proposal.Status == "" {
		proposal.Status = models.DegreeStatusDraft
	}
	now := time.Now().UTC()
	if proposal.CreatedAt.IsZero() {
		proposal.CreatedAt = now
	}
	proposal.UpdatedAt = proposal.CreatedAt
	const query = `INSERT INTO degree_proposals (` + proposalColumns + `)
	VALUES (:id, :student_id, :expected_year, :status, :credential_id, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, proposal); err != nil {
		return translateInsertErr(err, "create degree proposal")
	}
	return nil
}

// GetByID fetches a proposal by identifier.
func (r *DegreeProposalRepository) GetByID(ctx context.Context, id string) (*models.DegreeProposal, error) {
	const query = `SELECT ` + proposalColumns + ` FROM degree_proposals WHERE id = $1`
	var proposal models.DegreeProposal
	if err := r.db.GetContext(ctx, &proposal, query, id); err != nil {
		return nil, err
	}
	return &proposal, nil
}

// Transition moves a proposal from one status to another, returning sql.ErrNoRows
// when the row is no longer in the expected status.
func (r *DegreeProposalRepository) Transition(ctx context.Context, id string, from, to models.DegreeProposalStatus) error {
	const query = `UPDATE degree_proposals SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`
	return expectOneRow(r.db.ExecContext(ctx, query, to, time.Now().UTC(), id, from))
}

// MarkIssuedTx binds the issued credential and closes the proposal inside tx.
func (r *DegreeProposalRepository) MarkIssuedTx(ctx context.Context, tx *sqlx.Tx, id, credentialID string) error {
	query := fmt.Sprintf(`UPDATE degree_proposals SET status = '%s', credential_id = $1, updated_at = $2
	WHERE id = $3 AND status = '%s'`, models.DegreeStatusIssued, models.DegreeStatusApproved)
	return expectOneRow(tx.ExecContext(ctx, query, credentialID, time.Now().UTC(), id))
}

func expectOneRow(result sql.Result, err error) error {
	if err != nil {
		return fmt.Errorf("update row: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check updated rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
