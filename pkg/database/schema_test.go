package database

import (
	"context"
	"errors"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func TestSchemaGuardsActiveCredentialPerSource(t *testing.T) {
	require.Contains(t, Schema, "CREATE UNIQUE INDEX IF NOT EXISTS credentials_one_active_per_source")
	require.Regexp(t, regexp.MustCompile(`ON credentials \(type, source_id\)\s+WHERE type IN \('DEGREE', 'SEMESTER'\) AND status IN \('PENDING', 'ISSUED'\) AND replaced_by IS NULL`), Schema)
	require.Contains(t, Schema, "approvals_one_pending")
}

func TestEnsureSchema(t *testing.T) {
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	db := sqlx.NewDb(raw, "sqlmock")
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS programs")).WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, EnsureSchema(context.Background(), db))

	mock.ExpectExec("CREATE TABLE").WillReturnError(errors.New("permission denied"))
	require.ErrorContains(t, EnsureSchema(context.Background(), db), "permission denied")
	require.NoError(t, mock.ExpectationsWereMet())
}
