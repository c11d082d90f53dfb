package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// CleanupService enforces audit retention and drops idle rate-limit buckets.
type CleanupService struct {
	Pool          PgxPool
	RetentionDays int
	// BucketIdle is how long a mirrored bucket may go untouched before removal.
	BucketIdle time.Duration
	now        func() time.Time
}

// NewCleanupService creates a cleanup service. retentionDays <= 0 means 365.
func NewCleanupService(pool PgxPool, retentionDays int) *CleanupService {
	if retentionDays <= 0 {
		retentionDays = 365
	}
	return &CleanupService{Pool: pool, RetentionDays: retentionDays, BucketIdle: 7 * 24 * time.Hour, now: time.Now}
}

// CleanupOldData deletes expired rows in a single transaction.
func (s *CleanupService) CleanupOldData(ctx context.Context) error {
	now := s.now().UTC()
	cutoff := now.AddDate(0, 0, -s.RetentionDays)

	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("op=cleanup.begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	auditTag, err := tx.Exec(ctx, `DELETE FROM ai_audit_logs WHERE timestamp < $1`, cutoff)
	if err != nil {
		return fmt.Errorf("op=cleanup.audit: %w", err)
	}
	bucketTag, err := tx.Exec(ctx, `DELETE FROM rate_limit_buckets WHERE last_refill < $1`, now.Add(-s.BucketIdle))
	if err != nil {
		return fmt.Errorf("op=cleanup.buckets: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("op=cleanup.commit: %w", err)
	}

	slog.Info("data cleanup completed",
		slog.Int64("deleted_audit_logs", auditTag.RowsAffected()),
		slog.Int64("deleted_rate_limit_buckets", bucketTag.RowsAffected()),
		slog.Time("cutoff", cutoff),
	)
	return nil
}

// RunPeriodic runs CleanupOldData immediately and then every interval until ctx is done.
func (s *CleanupService) RunPeriodic(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := s.CleanupOldData(ctx); err != nil {
		slog.Error("initial cleanup failed", slog.Any("error", err))
	}
	for {
		select {
		case <-ctx.Done():
			slog.Info("cleanup service stopping")
			return
		case <-ticker.C:
			if err := s.CleanupOldData(ctx); err != nil {
				slog.Error("periodic cleanup failed", slog.Any("error", err))
			}
		}
	}
}
