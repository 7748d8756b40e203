package db

import (
	"context"
	"errors"
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureSchema(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	for _, table := range []string{"patients", "therapists", "appointments"} {
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS " + table).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	}
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS appointments_patient_idx").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS appointments_therapist_idx").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	for _, table := range []string{"waiting_list", "feedback", "event_logs"} {
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS " + table).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	}

	require.NoError(t, EnsureSchema(context.Background(), mock))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema_StopsOnError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS patients").WillReturnError(errors.New("permission denied"))

	err = EnsureSchema(context.Background(), mock)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema statement 1")
	require.NoError(t, mock.ExpectationsWereMet())
}
