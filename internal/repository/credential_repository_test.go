package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/credential-ledger-api/internal/models"
)

var credentialRowColumns = []string{"id", "student_id", "type", "status", "source_id", "document_hash", "payload", "token_id", "tx_hash",
	"issued_at", "revoked_at", "revoke_reason", "replaced_by", "created_by", "created_at", "updated_at"}

func TestCredentialRepositoryCreateAndGetByHash(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCredentialRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO credentials")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	credential := &models.Credential{
		StudentID:    "stu-1",
		Type:         models.CredentialTypeDegree,
		SourceID:     "prop-1",
		DocumentHash: "0xabc",
		Payload:      models.CredentialPayload{Type: models.CredentialTypeDegree, StudentID: "stu-1"},
	}
	require.NoError(t, repo.Create(context.Background(), credential))
	require.Equal(t, models.CredentialStatusPending, credential.Status)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM credentials WHERE document_hash = $1")).
		WithArgs("0xabc").
		WillReturnRows(sqlmock.NewRows(credentialRowColumns).
			AddRow(credential.ID, "stu-1", "DEGREE", "ISSUED", "prop-1", "0xabc", `{"type":"DEGREE","studentId":"stu-1"}`, "7", "0xtx",
				now, nil, nil, nil, "user-1", now, now))
	found, err := repo.GetByHash(context.Background(), "0xabc")
	require.NoError(t, err)
	require.Equal(t, models.CredentialStatusIssued, found.Status)
	require.Equal(t, "7", *found.TokenID)
	require.Equal(t, "stu-1", found.Payload.StudentID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCredentialRepositoryMarkIssuedWithJobRecordInOneTx(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	credentials := NewCredentialRepository(db)
	records := NewJobRecordRepository(db)
	txm := NewTxManager(db)

	issued := models.CredentialIssued{CredentialID: "cred-1", TokenID: "123", TxHash: "0xtx", IssuedAt: time.Now()}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE credentials SET status = 'ISSUED'") + ".*" + regexp.QuoteMeta("status = 'PENDING'")).
		WithArgs("123", "0xtx", issued.IssuedAt, "cred-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO job_records")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := txm.WithinTx(context.Background(), func(tx *sqlx.Tx) error {
		if err := credentials.MarkIssuedTx(context.Background(), tx, issued); err != nil {
			return err
		}
		return records.CreateTx(context.Background(), tx, &models.JobRecord{JobID: "job-1", Type: models.JobTypeMint, Status: models.JobRecordCompleted, EntityID: "cred-1"})
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCredentialRepositoryMarkIssuedRollsBackWhenNotPending(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	credentials := NewCredentialRepository(db)
	txm := NewTxManager(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE credentials SET status = 'ISSUED'")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := txm.WithinTx(context.Background(), func(tx *sqlx.Tx) error {
		return credentials.MarkIssuedTx(context.Background(), tx, models.CredentialIssued{CredentialID: "cred-1", TokenID: "1", TxHash: "0x", IssuedAt: time.Now()})
	})
	require.True(t, errors.Is(err, sql.ErrNoRows))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCredentialRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCredentialRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM credentials WHERE student_id = $1 AND status IN ($2,$3) ORDER BY created_at DESC LIMIT 50")).
		WithArgs("stu-1", models.CredentialStatusIssued, models.CredentialStatusRevoked).
		WillReturnRows(sqlmock.NewRows(credentialRowColumns))
	list, err := repo.List(context.Background(), models.CredentialFilter{
		StudentID: "stu-1",
		Status:    []models.CredentialStatus{models.CredentialStatusIssued, models.CredentialStatusRevoked},
	})
	require.NoError(t, err)
	require.Empty(t, list)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCredentialRepositoryListAwaitingMint(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCredentialRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM credentials c") + ".*" + regexp.QuoteMeta("j.type = 'mint' AND j.status = 'PENDING'")).
		WithArgs(25).
		WillReturnRows(sqlmock.NewRows([]string{"credential_id", "document_hash", "job_id"}).
			AddRow("cred-9", "0xdd", "job-9"))
	list, err := repo.ListAwaitingMint(context.Background(), 25)
	require.NoError(t, err)
	require.Equal(t, []models.MintRequest{{CredentialID: "cred-9", DocumentHash: "0xdd", JobID: "job-9"}}, list)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCredentialRepositoryHasActiveForSource(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCredentialRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("status IN ('PENDING', 'ISSUED') AND replaced_by IS NULL")).
		WithArgs(models.CredentialTypeDegree, "prop-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	exists, err := repo.HasActiveForSource(context.Background(), models.CredentialTypeDegree, "prop-1")
	require.NoError(t, err)
	require.True(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}
