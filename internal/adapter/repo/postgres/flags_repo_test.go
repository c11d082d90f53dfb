package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/confms-ai-service/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/confms-ai-service/internal/domain"
)

func TestFlagRepo_Get(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		setup   func(pgxmock.PgxPoolIface)
		want    bool
		wantErr error
	}{
		{
			name: "enabled",
			setup: func(m pgxmock.PgxPoolIface) {
				m.ExpectQuery("SELECT enabled FROM ai_feature_flags").
					WithArgs("c1", domain.FeatureGrammarCheck).
					WillReturnRows(pgxmock.NewRows([]string{"enabled"}).AddRow(true))
			},
			want: true,
		},
		{
			name: "missing row",
			setup: func(m pgxmock.PgxPoolIface) {
				m.ExpectQuery("SELECT enabled FROM ai_feature_flags").
					WithArgs("c1", domain.FeatureGrammarCheck).
					WillReturnError(pgx.ErrNoRows)
			},
			wantErr: domain.ErrNotFound,
		},
		{
			name: "db error",
			setup: func(m pgxmock.PgxPoolIface) {
				m.ExpectQuery("SELECT enabled FROM ai_feature_flags").
					WithArgs("c1", domain.FeatureGrammarCheck).
					WillReturnError(assert.AnError)
			},
			wantErr: assert.AnError,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer m.Close()
			tt.setup(m)

			got, err := postgres.NewFlagRepo(m).Get(context.Background(), "c1", domain.FeatureGrammarCheck)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Contains(t, err.Error(), "op=flags.get")
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
			require.NoError(t, m.ExpectationsWereMet())
		})
	}
}

func TestFlagRepo_Upsert(t *testing.T) {
	t.Parallel()
	m, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer m.Close()

	ts := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	m.ExpectExec("INSERT INTO ai_feature_flags").
		WithArgs("c1", domain.FeatureEmailDraft, true, ts).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	m.ExpectExec("INSERT INTO ai_feature_flags").
		WithArgs("c1", domain.FeatureEmailDraft, false, pgxmock.AnyArg()).
		WillReturnError(assert.AnError)

	repo := postgres.NewFlagRepo(m)
	require.NoError(t, repo.Upsert(context.Background(), domain.FeatureFlag{ConferenceID: "c1", Feature: domain.FeatureEmailDraft, Enabled: true, UpdatedAt: ts}))
	err = repo.Upsert(context.Background(), domain.FeatureFlag{ConferenceID: "c1", Feature: domain.FeatureEmailDraft})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "op=flags.upsert")
	require.NoError(t, m.ExpectationsWereMet())
}

func TestFlagRepo_ListByConference(t *testing.T) {
	t.Parallel()
	m, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer m.Close()

	ts := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	m.ExpectQuery("SELECT conference_id, feature_name, enabled, updated_at FROM ai_feature_flags").
		WithArgs("c1").
		WillReturnRows(pgxmock.NewRows([]string{"conference_id", "feature_name", "enabled", "updated_at"}).
			AddRow("c1", domain.FeatureEmailDraft, true, ts).
			AddRow("c1", domain.FeatureGrammarCheck, false, ts))

	got, err := postgres.NewFlagRepo(m).ListByConference(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, []domain.FeatureFlag{
		{ConferenceID: "c1", Feature: domain.FeatureEmailDraft, Enabled: true, UpdatedAt: ts},
		{ConferenceID: "c1", Feature: domain.FeatureGrammarCheck, Enabled: false, UpdatedAt: ts},
	}, got)
	require.NoError(t, m.ExpectationsWereMet())
}
