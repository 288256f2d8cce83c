package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/credential-ledger-api/internal/models"
)

func TestJobRecordRepositoryListFailed(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewJobRecordRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM job_records WHERE status = 'FAILED' AND type = $1 ORDER BY created_at DESC LIMIT 50")).
		WithArgs(models.JobTypeRevoke).
		WillReturnRows(sqlmock.NewRows([]string{"id", "job_id", "type", "status", "entity_id", "output", "attempts", "error", "completed_at", "created_at"}).
			AddRow("rec-1", "job-1", "revoke", "FAILED", "cred-1", []byte(`{}`), 5, "gateway timeout", time.Now(), time.Now()))
	records, err := repo.ListFailed(context.Background(), models.JobTypeRevoke, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "gateway timeout", *records[0].Error)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRecordRepositoryCreateDefaults(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewJobRecordRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO job_records")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	record := &models.JobRecord{JobID: "job-1", Type: models.JobTypeMint, Status: models.JobRecordPending, EntityID: "cred-1"}
	require.NoError(t, repo.Create(context.Background(), record))
	require.NotEmpty(t, record.ID)
	require.False(t, record.CreatedAt.IsZero())
	require.JSONEq(t, `{}`, string(record.Output))
	require.NoError(t, mock.ExpectationsWereMet())
}
