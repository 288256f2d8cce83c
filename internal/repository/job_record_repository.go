package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/credential-ledger-api/internal/models"
)

const jobRecordColumns = `id, job_id, type, status, entity_id, output, attempts, error, completed_at, created_at`

// JobRecordRepository appends pipeline outcome rows. Rows are never updated.
type JobRecordRepository struct {
	db *sqlx.DB
}

// NewJobRecordRepository constructs the repository.
func NewJobRecordRepository(db *sqlx.DB) *JobRecordRepository {
	return &JobRecordRepository{db: db}
}

// Create appends a record.
func (r *JobRecordRepository) Create(ctx context.Context, record *models.JobRecord) error {
	return r.create(ctx, r.db, record)
}

// CreateTx appends a record inside tx.
func (r *JobRecordRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, record *models.JobRecord) error {
	return r.create(ctx, tx, record)
}

func (r *JobRecordRepository) create(ctx context.Context, exec sqlx.ExtContext, record *models.JobRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	if len(record.Output) == 0 {
		record.Output = []byte(`{}`)
	}
	const query = `INSERT INTO job_records (` + jobRecordColumns + `)
	VALUES (:id, :job_id, :type, :status, :entity_id, :output, :attempts, :error, :completed_at, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, exec, query, record); err != nil {
		return translateInsertErr(err, "create job record")
	}
	return nil
}

// ListFailed returns FAILED records awaiting manual remediation, newest first.
func (r *JobRecordRepository) ListFailed(ctx context.Context, jobType models.JobType, limit int) ([]models.JobRecord, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := `SELECT ` + jobRecordColumns + ` FROM job_records WHERE status = 'FAILED'`
	args := []interface{}{}
	if jobType != "" {
		args = append(args, jobType)
		query += " AND type = $1"
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d", limit)

	var records []models.JobRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("list failed jobs: %w", err)
	}
	return records, nil
}
