// Command server starts the conference AI assistance HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	ai "github.com/fairyhunter13/confms-ai-service/internal/adapter/ai"
	"github.com/fairyhunter13/confms-ai-service/internal/adapter/ai/real"
	"github.com/fairyhunter13/confms-ai-service/internal/adapter/ai/stub"
	"github.com/fairyhunter13/confms-ai-service/internal/adapter/ai/tokencount"
	"github.com/fairyhunter13/confms-ai-service/internal/adapter/cache/rediscache"
	httpserver "github.com/fairyhunter13/confms-ai-service/internal/adapter/httpserver"
	"github.com/fairyhunter13/confms-ai-service/internal/adapter/observability"
	"github.com/fairyhunter13/confms-ai-service/internal/adapter/queue/redpanda"
	"github.com/fairyhunter13/confms-ai-service/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/confms-ai-service/internal/app"
	"github.com/fairyhunter13/confms-ai-service/internal/config"
	"github.com/fairyhunter13/confms-ai-service/internal/domain"
	"github.com/fairyhunter13/confms-ai-service/internal/service/featureflags"
	"github.com/fairyhunter13/confms-ai-service/internal/service/ratelimiter"
	"github.com/fairyhunter13/confms-ai-service/internal/service/similarity"
	"github.com/fairyhunter13/confms-ai-service/internal/usecase"
)

// aiProvider is what the server needs from a model backend.
type aiProvider interface {
	domain.LLM
	domain.Embedder
}

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		slog.Error("db connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.Error("invalid REDIS_URL", slog.Any("error", err))
		os.Exit(1)
	}
	rdb := redis.NewClient(redisOpts)
	defer func() { _ = rdb.Close() }()
	redisUp := rdb.Ping(ctx).Err() == nil
	if !redisUp {
		slog.Warn("redis unreachable at start-up; using in-process rate limiting")
	}

	prompts := config.DefaultPrompts()
	if cfg.PromptsFile != "" {
		if prompts, err = config.LoadPrompts(cfg.PromptsFile); err != nil {
			slog.Error("prompts load failed", slog.String("path", cfg.PromptsFile), slog.Any("error", err))
			os.Exit(1)
		}
	}

	var provider aiProvider
	if cfg.OpenAIAPIKey == "" {
		slog.Warn("OPENAI_API_KEY not set; using the offline stub provider")
		provider = stub.New()
	} else {
		provider = real.New(cfg)
		slog.Info("AI provider initialized",
			slog.String("base_url", cfg.OpenAIBaseURL),
			slog.String("chat_model", cfg.ModelName),
			slog.String("embeddings_model", cfg.EmbeddingsModel))
	}

	// memory LRU in front of Redis in front of the provider
	embedder := ai.NewEmbedCache(
		rediscache.NewEmbeddingCache(provider, rdb, cfg.EmbeddingsModel, cfg.EmbeddingCacheTTL),
		cfg.EmbedCacheSize,
	)
	scoreOpts := similarity.DefaultOptions()
	scoreOpts.Concurrency = cfg.MatchConcurrency
	scoreOpts.MaxTextRunes = cfg.MaxAbstractRunes
	scorer := similarity.NewScorer(embedder,
		similarity.NewLLMTopicExtractor(provider, prompts, scoreOpts.MaxTopics),
		scoreOpts)

	flagRepo := postgres.NewFlagRepo(pool)
	flags := featureflags.NewManager(flagRepo, rdb, cfg.FeatureFlagsCacheTTL)

	bucket := ratelimiter.NewBucketConfig(cfg.RateLimitPerConference, cfg.RateLimitWindow)
	var limiter ratelimiter.Limiter
	if redisUp {
		lua := ratelimiter.NewRedisLuaLimiter(rdb, pool, bucket)
		if err := lua.WarmFromPostgres(ctx); err != nil {
			slog.Warn("rate limit warm-up skipped", slog.Any("error", err))
		}
		limiter = lua
	} else {
		limiter = ratelimiter.NewMemoryLimiter(bucket)
	}

	auditRepo := postgres.NewAuditRepo(pool)
	var (
		sink      domain.AuditSink = usecase.RepoSink{Repo: auditRepo}
		kafkaPing app.Pinger
	)
	if cfg.UseKafkaAudit() {
		pub, err := redpanda.NewAuditPublisher(ctx, cfg.KafkaBrokers, cfg.AuditTopic)
		if err != nil {
			slog.Error("redpanda publisher init failed", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() { _ = pub.Close() }()
		sink, kafkaPing = pub, pub
	}
	auditor := usecase.NewAuditor(sink, auditRepo, cfg.AuditSink, cfg.EnablePIIRedaction)

	guard := usecase.NewGuard(flags, ratelimiter.NewConferenceLimiter(limiter))
	assistant := &usecase.Assistant{
		LLM:     provider,
		Prompts: prompts,
		Guard:   guard,
		Audit:   auditor,
		Tokens:  tokencount.NewCounter(),
	}
	docs := rediscache.NewDocumentStore(rdb)

	srv := httpserver.NewServer(cfg,
		usecase.NewAuthorService(assistant),
		usecase.NewReviewerService(assistant, docs, cfg.SynopsisCacheTTL),
		usecase.NewChairService(assistant, docs, cfg.EmailDraftTTL),
		usecase.NewAssignmentService(scorer, guard, auditor, cfg.EmbeddingsModel),
		flags,
		auditor,
		app.BuildReadinessChecks(cfg, pool, rdb, kafkaPing)...,
	)

	srvHTTP := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           app.BuildRouter(cfg, srv),
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting",
			slog.Int("port", cfg.Port),
			slog.String("audit_sink", cfg.AuditSink))
		errCh <- srvHTTP.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	if err := srvHTTP.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", slog.Any("error", err))
	}
	slog.Info("server stopped")
}
