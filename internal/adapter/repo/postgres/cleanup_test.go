package postgres_test

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/confms-ai-service/internal/adapter/repo/postgres"
)

func TestCleanupService_CleanupOldData_OK(t *testing.T) {
	m, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer m.Close()

	m.ExpectBegin()
	m.ExpectExec("DELETE FROM ai_audit_logs").WithArgs(pgxmock.AnyArg()).WillReturnResult(pgxmock.NewResult("DELETE", 3))
	m.ExpectExec("DELETE FROM rate_limit_buckets").WithArgs(pgxmock.AnyArg()).WillReturnResult(pgxmock.NewResult("DELETE", 1))
	m.ExpectCommit()

	svc := postgres.NewCleanupService(m, 365)
	require.NoError(t, svc.CleanupOldData(context.Background()))
	require.NoError(t, m.ExpectationsWereMet())
}

func TestCleanupService_BeginError(t *testing.T) {
	m, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer m.Close()
	m.ExpectBegin().WillReturnError(assert.AnError)

	err = postgres.NewCleanupService(m, 0).CleanupOldData(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "op=cleanup.begin")
}

func TestCleanupService_DeleteErrorRollsBack(t *testing.T) {
	m, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer m.Close()
	m.ExpectBegin()
	m.ExpectExec("DELETE FROM ai_audit_logs").WithArgs(pgxmock.AnyArg()).WillReturnError(assert.AnError)
	m.ExpectRollback()

	err = postgres.NewCleanupService(m, 30).CleanupOldData(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "op=cleanup.audit")
	require.NoError(t, m.ExpectationsWereMet())
}

func TestCleanupService_CommitError(t *testing.T) {
	m, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer m.Close()
	m.ExpectBegin()
	m.ExpectExec("DELETE FROM ai_audit_logs").WithArgs(pgxmock.AnyArg()).WillReturnResult(pgxmock.NewResult("DELETE", 0))
	m.ExpectExec("DELETE FROM rate_limit_buckets").WithArgs(pgxmock.AnyArg()).WillReturnResult(pgxmock.NewResult("DELETE", 0))
	m.ExpectCommit().WillReturnError(assert.AnError)

	err = postgres.NewCleanupService(m, 30).CleanupOldData(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "op=cleanup.commit")
}

func TestCleanupService_RunPeriodic_StopsOnCancel(t *testing.T) {
	m, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer m.Close()
	m.ExpectBegin().WillReturnError(assert.AnError)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		postgres.NewCleanupService(m, 1).RunPeriodic(ctx, 0)
		close(done)
	}()
	cancel()
	<-done
}
