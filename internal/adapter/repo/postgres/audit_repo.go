package postgres

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/confms-ai-service/internal/domain"
)

// AuditRepo persists AI audit entries in ai_audit_logs.
type AuditRepo struct{ Pool PgxPool }

// NewAuditRepo constructs an AuditRepo with the given pool.
func NewAuditRepo(p PgxPool) *AuditRepo { return &AuditRepo{Pool: p} }

// Insert stores e. Re-inserting an existing id is a no-op, so redelivered
// events are safe.
func (r *AuditRepo) Insert(ctx domain.Context, e domain.AuditEntry) error {
	ctx, span := otel.Tracer("repo.audit").Start(ctx, "audit.Insert")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "ai_audit_logs"),
	)

	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	meta := e.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("op=audit.insert: metadata: %w", err)
	}
	_, err = r.Pool.Exec(ctx,
		`INSERT INTO ai_audit_logs (id, timestamp, conference_id, user_id, feature, action,
		   prompt, model_id, input_hash, output_summary, accepted, metadata)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		 ON CONFLICT (id) DO NOTHING`,
		e.ID, e.Timestamp, e.ConferenceID, e.UserID, e.Feature, e.Action,
		e.Prompt, e.ModelID, e.InputHash, e.OutputSummary, e.Accepted, metaJSON,
	)
	if err != nil {
		return fmt.Errorf("op=audit.insert: %w", err)
	}
	return nil
}

// Query returns entries matching q, newest first.
func (r *AuditRepo) Query(ctx domain.Context, q domain.AuditQuery) ([]domain.AuditEntry, error) {
	ctx, span := otel.Tracer("repo.audit").Start(ctx, "audit.Query")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "ai_audit_logs"),
	)

	var conds []string
	var args []any
	add := func(col, v string) {
		if v == "" {
			return
		}
		args = append(args, v)
		conds = append(conds, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	add("conference_id", q.ConferenceID)
	add("user_id", q.UserID)
	add("feature", q.Feature)

	sql := `SELECT id, timestamp, conference_id, user_id, feature, action, prompt, model_id,
	   input_hash, output_summary, accepted, metadata FROM ai_audit_logs`
	if len(conds) > 0 {
		sql += " WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, q.Limit, q.Offset)
	sql += fmt.Sprintf(" ORDER BY timestamp DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("op=audit.query: %w", err)
	}
	defer rows.Close()

	out := []domain.AuditEntry{}
	for rows.Next() {
		var e domain.AuditEntry
		var meta []byte
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.ConferenceID, &e.UserID, &e.Feature, &e.Action,
			&e.Prompt, &e.ModelID, &e.InputHash, &e.OutputSummary, &e.Accepted, &meta); err != nil {
			return nil, fmt.Errorf("op=audit.query: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &e.Metadata); err != nil {
				return nil, fmt.Errorf("op=audit.query: metadata: %w", err)
			}
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=audit.query: %w", err)
	}
	return out, nil
}

// UsageStats aggregates decisions per feature within [Start, End].
func (r *AuditRepo) UsageStats(ctx domain.Context, q domain.UsageQuery) (domain.UsageStats, error) {
	ctx, span := otel.Tracer("repo.audit").Start(ctx, "audit.UsageStats")
	defer span.End()

	sql := `SELECT feature,
	   COUNT(*),
	   COUNT(*) FILTER (WHERE accepted = true),
	   COUNT(*) FILTER (WHERE accepted = false),
	   COUNT(*) FILTER (WHERE accepted IS NULL)
	 FROM ai_audit_logs
	 WHERE conference_id = $1 AND timestamp >= $2 AND timestamp <= $3`
	args := []any{q.ConferenceID, q.Start, q.End}
	if q.Feature != "" {
		sql += " AND feature = $4"
		args = append(args, q.Feature)
	}
	sql += " GROUP BY feature ORDER BY feature"

	rows, err := r.Pool.Query(ctx, sql, args...)
	if err != nil {
		return domain.UsageStats{}, fmt.Errorf("op=audit.usage_stats: %w", err)
	}
	defer rows.Close()

	stats := domain.UsageStats{
		ConferenceID: q.ConferenceID,
		Start:        q.Start,
		End:          q.End,
		Features:     []domain.FeatureUsage{},
	}
	for rows.Next() {
		var u domain.FeatureUsage
		if err := rows.Scan(&u.Feature, &u.Total, &u.Accepted, &u.Rejected, &u.Pending); err != nil {
			return domain.UsageStats{}, fmt.Errorf("op=audit.usage_stats: %w", err)
		}
		if u.Total > 0 {
			u.AcceptanceRate = float64(u.Accepted) / float64(u.Total)
		}
		stats.Features = append(stats.Features, u)
		stats.Total += u.Total
		stats.Accepted += u.Accepted
		stats.Rejected += u.Rejected
	}
	if err := rows.Err(); err != nil {
		return domain.UsageStats{}, fmt.Errorf("op=audit.usage_stats: %w", err)
	}
	return stats, nil
}
