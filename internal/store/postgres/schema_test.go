package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS applications`).WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, EnsureSchema(context.Background(), sqlx.NewDb(db, "postgres")))

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS applications`).WillReturnError(errors.New("permission denied"))
	err = EnsureSchema(context.Background(), sqlx.NewDb(db, "postgres"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ensure schema")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSchemaCoversStoreTables(t *testing.T) {
	for _, table := range []string{
		"applications", "application_organizations", "application_achievements",
		"application_divisions", "application_audit_log",
	} {
		assert.Contains(t, schema, "CREATE TABLE IF NOT EXISTS "+table+" (")
	}
}
