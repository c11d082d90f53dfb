// Package main provides the worker entry point. The worker persists audit
// events published by the API and enforces audit retention.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/fairyhunter13/confms-ai-service/internal/adapter/observability"
	"github.com/fairyhunter13/confms-ai-service/internal/adapter/queue/redpanda"
	"github.com/fairyhunter13/confms-ai-service/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/confms-ai-service/internal/config"
)

const metricsAddr = ":9090"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("error", err))
		os.Exit(1)
	}

	slog.SetDefault(observability.SetupLogger(cfg))
	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	slog.Info("starting worker", slog.String("env", cfg.AppEnv), slog.String("audit_sink", cfg.AuditSink))

	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		slog.Error("database connection failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker metrics server error", slog.Any("error", err))
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsSrv.Shutdown(shutdownCtx)
	})

	cleanup := postgres.NewCleanupService(pool, cfg.AuditRetentionDays)
	g.Go(func() error {
		slog.Info("cleanup service started",
			slog.Int("retention_days", cleanup.RetentionDays),
			slog.Duration("interval", cfg.CleanupInterval))
		cleanup.RunPeriodic(gctx, cfg.CleanupInterval)
		return nil
	})

	if cfg.UseKafkaAudit() {
		consumer, err := redpanda.NewAuditConsumer(cfg.KafkaBrokers, cfg.AuditGroupID, cfg.AuditTopic, postgres.NewAuditRepo(pool))
		if err != nil {
			slog.Error("redpanda consumer init failed", slog.Any("error", err))
			os.Exit(1)
		}
		defer consumer.Close()
		g.Go(func() error {
			slog.Info("audit consumer started",
				slog.String("topic", cfg.AuditTopic),
				slog.String("group", cfg.AuditGroupID))
			// a stopped consumer must take the worker down so the orchestrator restarts it
			return consumer.Run(gctx)
		})
	} else {
		slog.Info("audit sink is postgres; audit consumer disabled")
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("worker stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
	slog.Info("worker stopped")
}
