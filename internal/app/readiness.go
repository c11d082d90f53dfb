package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	httpserver "github.com/fairyhunter13/confms-ai-service/internal/adapter/httpserver"
	"github.com/fairyhunter13/confms-ai-service/internal/config"
)

// Pinger is satisfied by *pgxpool.Pool and *redpanda.AuditPublisher.
type Pinger interface{ Ping(ctx context.Context) error }

// BuildReadinessChecks returns the db and redis checks, plus kafka when audit entries go through it.
func BuildReadinessChecks(cfg config.Config, pool Pinger, rdb redis.Cmdable, kafka Pinger) []httpserver.ReadinessCheck {
	checks := []httpserver.ReadinessCheck{
		{Name: "db", Check: func(ctx context.Context) error {
			if pool == nil {
				return fmt.Errorf("db not configured")
			}
			return pool.Ping(ctx)
		}},
		{Name: "redis", Check: func(ctx context.Context) error {
			if rdb == nil {
				return fmt.Errorf("redis not configured")
			}
			return rdb.Ping(ctx).Err()
		}},
	}
	if cfg.UseKafkaAudit() {
		checks = append(checks, httpserver.ReadinessCheck{Name: "kafka", Check: func(ctx context.Context) error {
			if kafka == nil {
				return fmt.Errorf("kafka not configured")
			}
			return kafka.Ping(ctx)
		}})
	}
	return checks
}
