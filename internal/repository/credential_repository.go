package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/credential-ledger-api/internal/models"
)

const credentialColumns = `id, student_id, type, status, source_id, document_hash, payload, token_id, tx_hash,
       issued_at, revoked_at, revoke_reason, replaced_by, created_by, created_at, updated_at`

// CredentialRepository persists credentials. Status columns are only written
// through guarded transitions.
type CredentialRepository struct {
	db *sqlx.DB
}

// NewCredentialRepository constructs the repository.
func NewCredentialRepository(db *sqlx.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// Create inserts a PENDING credential.
func (r *CredentialRepository) Create(ctx context.Context, credential *models.Credential) error {
	return r.create(ctx, r.db, credential)
}

// CreateTx inserts a PENDING credential inside tx.
func (r *CredentialRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, credential *models.Credential) error {
	return r.create(ctx, tx, credential)
}

func (r *CredentialRepository) create(ctx context.Context, exec sqlx.ExtContext, credential *models.Credential) error {
	if credential.ID == "" {
		credential.ID = uuid.NewString()
	}
	credential.Status = models.CredentialStatusPending
	if credential.CreatedAt.IsZero() {
		credential.CreatedAt = time.Now().UTC()
	}
	credential.UpdatedAt = credential.CreatedAt
	const query = `INSERT INTO credentials (id, student_id, type, status, source_id, document_hash, payload, created_by, created_at, updated_at)
	VALUES (:id, :student_id, :type, :status, :source_id, :document_hash, :payload, :created_by, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, exec, query, credential); err != nil {
		return translateInsertErr(err, "create credential")
	}
	return nil
}

// GetByID fetches a credential by identifier.
func (r *CredentialRepository) GetByID(ctx context.Context, id string) (*models.Credential, error) {
	return r.getBy(ctx, "id", id)
}

// GetByHash fetches the most recent credential anchored by documentHash.
func (r *CredentialRepository) GetByHash(ctx context.Context, documentHash string) (*models.Credential, error) {
	return r.getBy(ctx, "document_hash", documentHash)
}

// GetByTokenID fetches the credential bound to a ledger token.
func (r *CredentialRepository) GetByTokenID(ctx context.Context, tokenID string) (*models.Credential, error) {
	return r.getBy(ctx, "token_id", tokenID)
}

func (r *CredentialRepository) getBy(ctx context.Context, column, value string) (*models.Credential, error) {
	query := fmt.Sprintf(`SELECT %s FROM credentials WHERE %s = $1 ORDER BY created_at DESC LIMIT 1`, credentialColumns, column)
	var credential models.Credential
	if err := r.db.GetContext(ctx, &credential, query, value); err != nil {
		return nil, err
	}
	return &credential, nil
}

// HasActiveForSource reports whether a PENDING or ISSUED credential of type t,
// not yet superseded by a replacement, already exists for sourceID.
func (r *CredentialRepository) HasActiveForSource(ctx context.Context, t models.CredentialType, sourceID string) (bool, error) {
	const query = `SELECT EXISTS (
	    SELECT 1 FROM credentials
	    WHERE type = $1 AND source_id = $2 AND status IN ('PENDING', 'ISSUED') AND replaced_by IS NULL
	)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, t, sourceID); err != nil {
		return false, fmt.Errorf("check active credential for source: %w", err)
	}
	return exists, nil
}

// List returns credentials matching the filter, newest first.
func (r *CredentialRepository) List(ctx context.Context, filter models.CredentialFilter) ([]models.Credential, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 4)
	builder.WriteString(`SELECT ` + credentialColumns + ` FROM credentials`)

	conditions := make([]string, 0, 3)
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)))
	}
	if len(filter.Status) > 0 {
		start := len(args) + 1
		for _, status := range filter.Status {
			args = append(args, status)
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", placeholders(start, len(filter.Status))))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY created_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d", limit))

	var credentials []models.Credential
	if err := r.db.SelectContext(ctx, &credentials, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	return credentials, nil
}

// ListAwaitingMint returns PENDING credentials whose latest mint request has
// neither completed nor failed, with the job id the request was recorded under.
func (r *CredentialRepository) ListAwaitingMint(ctx context.Context, limit int) ([]models.MintRequest, error) {
	if limit <= 0 {
		limit = 100
	}
	const query = `SELECT c.id AS credential_id, c.document_hash, p.job_id
	FROM credentials c
	JOIN LATERAL (
	    SELECT j.job_id, j.created_at FROM job_records j
	    WHERE j.entity_id = c.id AND j.type = 'mint' AND j.status = 'PENDING'
	    ORDER BY j.created_at DESC LIMIT 1
	) p ON TRUE
	WHERE c.status = 'PENDING'
	  AND NOT EXISTS (
	    SELECT 1 FROM job_records d
	    WHERE d.entity_id = c.id AND d.type = 'mint' AND d.status IN ('COMPLETED', 'FAILED')
	      AND d.created_at >= p.created_at
	  )
	ORDER BY c.created_at ASC LIMIT $1`
	var requests []models.MintRequest
	if err := r.db.SelectContext(ctx, &requests, query, limit); err != nil {
		return nil, fmt.Errorf("list credentials awaiting mint: %w", err)
	}
	return requests, nil
}

// MarkIssuedTx records a successful mint. It returns sql.ErrNoRows when the
// credential already left PENDING.
func (r *CredentialRepository) MarkIssuedTx(ctx context.Context, tx *sqlx.Tx, issued models.CredentialIssued) error {
	query := fmt.Sprintf(`UPDATE credentials SET status = '%s', token_id = $1, tx_hash = $2, issued_at = $3, updated_at = $3
	WHERE id = $4 AND status = '%s'`, models.CredentialStatusIssued, models.CredentialStatusPending)
	return expectOneRow(tx.ExecContext(ctx, query, issued.TokenID, issued.TxHash, issued.IssuedAt, issued.CredentialID))
}

// MarkWithdrawnTx records a successful revoke as REVOKED or REPLACED. The token
// reference is kept. Returns sql.ErrNoRows when the credential is not ISSUED.
func (r *CredentialRepository) MarkWithdrawnTx(ctx context.Context, tx *sqlx.Tx, withdrawn models.CredentialWithdrawn) error {
	query := fmt.Sprintf(`UPDATE credentials SET status = $1, revoke_reason = $2, revoked_at = $3, updated_at = $3
	WHERE id = $4 AND status = '%s'`, models.CredentialStatusIssued)
	return expectOneRow(tx.ExecContext(ctx, query, withdrawn.Status, withdrawn.Reason, withdrawn.RevokedAt, withdrawn.CredentialID))
}

// SetReplacedByTx links an old credential to its replacement.
func (r *CredentialRepository) SetReplacedByTx(ctx context.Context, tx *sqlx.Tx, id, replacementID string) error {
	const query = `UPDATE credentials SET replaced_by = $1, updated_at = $2 WHERE id = $3 AND replaced_by IS NULL`
	return expectOneRow(tx.ExecContext(ctx, query, replacementID, time.Now().UTC(), id))
}
