package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/credential-ledger-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var approvalRowColumns = []string{"id", "type", "entity_type", "entity_id", "step", "status", "approver_id", "decided_at", "note", "comments", "created_at"}

func TestApprovalRepositoryCreateDefaultsAndDuplicate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewApprovalRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO approvals")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	approval := &models.Approval{Type: models.ApprovalTypeDegreeProposal, EntityType: models.EntityDegreeProposal, EntityID: "prop-1"}
	require.NoError(t, repo.Create(context.Background(), approval))
	require.NotEmpty(t, approval.ID)
	require.Equal(t, 1, approval.Step)
	require.Equal(t, models.ApprovalStatusPending, approval.Status)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO approvals")).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})
	err := repo.Create(context.Background(), &models.Approval{Type: models.ApprovalTypeDegreeProposal, EntityType: models.EntityDegreeProposal, EntityID: "prop-1"})
	require.ErrorIs(t, err, ErrDuplicate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApprovalRepositoryDecideGuardsPending(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewApprovalRepository(db)

	params := DecideApprovalParams{ID: "appr-1", Status: models.ApprovalStatusApproved, ApproverID: "user-1", DecidedAt: time.Now()}
	mock.ExpectExec(regexp.QuoteMeta("UPDATE approvals SET status = ?, approver_id = ?, decided_at = ?, comments = ?") + ".*" + regexp.QuoteMeta("status = 'PENDING'")).
		WithArgs(models.ApprovalStatusApproved, "user-1", params.DecidedAt, nil, "appr-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Decide(context.Background(), params))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE approvals")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.ErrorIs(t, repo.Decide(context.Background(), params), sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApprovalRepositoryFindPendingAndCount(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewApprovalRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM approvals")).
		WithArgs(models.EntityDegreeProposal, "prop-1", 2).
		WillReturnRows(sqlmock.NewRows(approvalRowColumns).
			AddRow("appr-2", "DEGREE_PROPOSAL", "degree_proposal", "prop-1", 2, "PENDING", nil, nil, nil, nil, time.Now()))
	found, err := repo.FindPending(context.Background(), models.EntityDegreeProposal, "prop-1", 2)
	require.NoError(t, err)
	require.Equal(t, "appr-2", found.ID)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT type, step, COUNT(*) AS count FROM approvals WHERE status = 'PENDING' AND type = $1")).
		WithArgs(models.ApprovalTypeDegreeProposal).
		WillReturnRows(sqlmock.NewRows([]string{"type", "step", "count"}).
			AddRow("DEGREE_PROPOSAL", 1, 3).
			AddRow("DEGREE_PROPOSAL", 2, 1))
	counts, err := repo.CountPending(context.Background(), models.ApprovalTypeDegreeProposal)
	require.NoError(t, err)
	require.Len(t, counts, 2)
	require.Equal(t, 3, counts[0].Count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApprovalRepositoryListDecided(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewApprovalRepository(db)

	decidedAt := time.Now().UTC()
	rows := sqlmock.NewRows(approvalRowColumns).
		AddRow("appr-1", "DEGREE_PROPOSAL", "degree_proposal", "prop-1", 1, "APPROVED", "academic-1", decidedAt, nil, nil, decidedAt)
	mock.ExpectQuery(regexp.QuoteMeta("FROM approvals") + ".*" + regexp.QuoteMeta("status <> 'PENDING'")).
		WithArgs(models.EntityDegreeProposal, "prop-1").
		WillReturnRows(rows)

	approvals, err := repo.ListDecided(context.Background(), models.EntityDegreeProposal, "prop-1")
	require.NoError(t, err)
	require.Len(t, approvals, 1)
	require.NotNil(t, approvals[0].ApproverID)
	require.Equal(t, "academic-1", *approvals[0].ApproverID)
	require.NoError(t, mock.ExpectationsWereMet())
}
