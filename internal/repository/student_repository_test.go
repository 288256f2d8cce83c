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

func TestStudentRepositorySetWalletOnlyOnce(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)
	wallet := models.WalletRecord{StudentID: "stu-1", Address: "0xabc", WalletID: "w-1", CreatedAt: time.Now()}

	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $4 AND wallet_address IS NULL")).
		WithArgs("0xabc", "w-1", wallet.CreatedAt, "stu-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	set, err := repo.SetWallet(context.Background(), wallet)
	require.NoError(t, err)
	require.True(t, set)

	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $4 AND wallet_address IS NULL")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	set, err = repo.SetWallet(context.Background(), wallet)
	require.NoError(t, err)
	require.False(t, set)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryAcademicSummary(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM students s")).
		WithArgs("stu-1").
		WillReturnRows(sqlmock.NewRows([]string{"student_id", "program_id", "completed_credits", "cgpa", "completed_semesters",
			"pending_results", "failed_courses", "required_credits", "min_cgpa", "required_semesters", "max_failed_courses"}).
			AddRow("stu-1", "prog-1", 144.0, 3.41, 8, 0, 1, 144.0, 2.0, 8, 2))
	summary, err := repo.GetAcademicSummary(context.Background(), "stu-1")
	require.NoError(t, err)
	require.Equal(t, 8, summary.CompletedSemesters)
	require.InDelta(t, 3.41, summary.CGPA, 0.0001)
	require.NoError(t, mock.ExpectationsWereMet())
}
