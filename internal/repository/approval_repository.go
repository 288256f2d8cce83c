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

const approvalColumns = `id, type, entity_type, entity_id, step, status, approver_id, decided_at, note, comments, created_at`

// ApprovalRepository persists approval engine rows.
type ApprovalRepository struct {
	db *sqlx.DB
}

// NewApprovalRepository constructs the repository.
func NewApprovalRepository(db *sqlx.DB) *ApprovalRepository {
	return &ApprovalRepository{db: db}
}

// Create inserts a PENDING approval. The partial unique index on
// (entity_type, entity_id, step) WHERE status = 'PENDING' surfaces as ErrDuplicate.
func (r *ApprovalRepository) Create(ctx context.Context, approval *models.Approval) error {
	if approval.ID == "" {
		approval.ID = uuid.NewString()
	}
	if approval.Status == "" {
		approval.Status = models.ApprovalStatusPending
	}
	if approval.Step <= 0 {
		approval.Step = 1
	}
	if approval.CreatedAt.IsZero() {
		approval.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO approvals (` + approvalColumns + `)
	VALUES (:id, :type, :entity_type, :entity_id, :step, :status, :approver_id, :decided_at, :note, :comments, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, approval); err != nil {
		return translateInsertErr(err, "create approval")
	}
	return nil
}

// GetByID fetches an approval by identifier.
func (r *ApprovalRepository) GetByID(ctx context.Context, id string) (*models.Approval, error) {
	const query = `SELECT ` + approvalColumns + ` FROM approvals WHERE id = $1`
	var approval models.Approval
	if err := r.db.GetContext(ctx, &approval, query, id); err != nil {
		return nil, err
	}
	return &approval, nil
}

// FindPending returns the open approval for an entity step or sql.ErrNoRows.
func (r *ApprovalRepository) FindPending(ctx context.Context, entityType, entityID string, step int) (*models.Approval, error) {
	const query = `SELECT ` + approvalColumns + ` FROM approvals
	WHERE entity_type = $1 AND entity_id = $2 AND step = $3 AND status = 'PENDING'
	ORDER BY created_at DESC LIMIT 1`
	var approval models.Approval
	if err := r.db.GetContext(ctx, &approval, query, entityType, entityID, step); err != nil {
		return nil, err
	}
	return &approval, nil
}

// ListDecided returns the decided approvals of an entity ordered by step.
func (r *ApprovalRepository) ListDecided(ctx context.Context, entityType, entityID string) ([]models.Approval, error) {
	const query = `SELECT ` + approvalColumns + ` FROM approvals
	WHERE entity_type = $1 AND entity_id = $2 AND status <> 'PENDING'
	ORDER BY step, decided_at`
	var approvals []models.Approval
	if err := r.db.SelectContext(ctx, &approvals, query, entityType, entityID); err != nil {
		return nil, fmt.Errorf("list decided approvals: %w", err)
	}
	return approvals, nil
}

// DecideApprovalParams groups the columns written by a review.
type DecideApprovalParams struct {
	ID         string
	Status     models.ApprovalStatus
	ApproverID string
	DecidedAt  time.Time
	Comments   *string
}

// Decide records a decision only while the approval is still PENDING and
// returns sql.ErrNoRows when another reviewer got there first.
func (r *ApprovalRepository) Decide(ctx context.Context, params DecideApprovalParams) error {
	query := fmt.Sprintf(`UPDATE approvals SET status = :status, approver_id = :approver_id, decided_at = :decided_at, comments = :comments
	WHERE id = :id AND status = '%s'`, models.ApprovalStatusPending)
	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":          params.ID,
		"status":      params.Status,
		"approver_id": params.ApproverID,
		"decided_at":  params.DecidedAt,
		"comments":    params.Comments,
	})
	if err != nil {
		return fmt.Errorf("decide approval: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check approval update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountPending groups open approvals by type and step, optionally for one type.
func (r *ApprovalRepository) CountPending(ctx context.Context, approvalType models.ApprovalType) ([]models.PendingApprovalCount, error) {
	query := `SELECT type, step, COUNT(*) AS count FROM approvals WHERE status = 'PENDING'`
	args := make([]interface{}, 0, 1)
	if approvalType != "" {
		args = append(args, approvalType)
		query += " AND type = $1"
	}
	query += " GROUP BY type, step ORDER BY type, step"

	var counts []models.PendingApprovalCount
	if err := r.db.SelectContext(ctx, &counts, query, args...); err != nil {
		return nil, fmt.Errorf("count pending approvals: %w", err)
	}
	return counts, nil
}
