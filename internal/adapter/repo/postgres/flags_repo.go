package postgres

import (
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/confms-ai-service/internal/domain"
)

// FlagRepo persists per-conference feature toggles in ai_feature_flags.
type FlagRepo struct{ Pool PgxPool }

// NewFlagRepo constructs a FlagRepo with the given pool.
func NewFlagRepo(p PgxPool) *FlagRepo { return &FlagRepo{Pool: p} }

// Get returns domain.ErrNotFound when no row exists.
func (r *FlagRepo) Get(ctx domain.Context, conferenceID, feature string) (bool, error) {
	ctx, span := otel.Tracer("repo.flags").Start(ctx, "flags.Get")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "ai_feature_flags"),
	)

	var enabled bool
	err := r.Pool.QueryRow(ctx,
		`SELECT enabled FROM ai_feature_flags WHERE conference_id=$1 AND feature_name=$2`,
		conferenceID, feature,
	).Scan(&enabled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, fmt.Errorf("op=flags.get: %w", domain.ErrNotFound)
		}
		return false, fmt.Errorf("op=flags.get: %w", err)
	}
	return enabled, nil
}

// Upsert inserts or updates a flag.
func (r *FlagRepo) Upsert(ctx domain.Context, f domain.FeatureFlag) error {
	ctx, span := otel.Tracer("repo.flags").Start(ctx, "flags.Upsert")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "ai_feature_flags"),
	)

	updated := f.UpdatedAt
	if updated.IsZero() {
		updated = time.Now().UTC()
	}
	_, err := r.Pool.Exec(ctx,
		`INSERT INTO ai_feature_flags (conference_id, feature_name, enabled, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (conference_id, feature_name)
		 DO UPDATE SET enabled = EXCLUDED.enabled, updated_at = EXCLUDED.updated_at`,
		f.ConferenceID, f.Feature, f.Enabled, updated,
	)
	if err != nil {
		return fmt.Errorf("op=flags.upsert: %w", err)
	}
	return nil
}

// ListByConference returns every stored flag for the conference, ordered by feature name.
func (r *FlagRepo) ListByConference(ctx domain.Context, conferenceID string) ([]domain.FeatureFlag, error) {
	ctx, span := otel.Tracer("repo.flags").Start(ctx, "flags.ListByConference")
	defer span.End()

	rows, err := r.Pool.Query(ctx,
		`SELECT conference_id, feature_name, enabled, updated_at FROM ai_feature_flags WHERE conference_id=$1 ORDER BY feature_name`,
		conferenceID,
	)
	if err != nil {
		return nil, fmt.Errorf("op=flags.list: %w", err)
	}
	defer rows.Close()

	var out []domain.FeatureFlag
	for rows.Next() {
		var f domain.FeatureFlag
		if err := rows.Scan(&f.ConferenceID, &f.Feature, &f.Enabled, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("op=flags.list: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=flags.list: %w", err)
	}
	return out, nil
}
