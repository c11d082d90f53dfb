package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/fairyhunter13/confms-ai-service/internal/config"
	"github.com/fairyhunter13/confms-ai-service/internal/domain"
	"github.com/fairyhunter13/confms-ai-service/internal/usecase"
)

// FlagAdmin is the feature flag surface used by governance routes.
type FlagAdmin interface {
	Enable(ctx context.Context, conferenceID, feature string) error
	Disable(ctx context.Context, conferenceID, feature string) error
	List(ctx context.Context, conferenceID string) ([]domain.FeatureFlag, error)
	Available() []string
}

// AuditReader answers governance queries over the audit trail.
type AuditReader interface {
	Query(ctx context.Context, f usecase.AuditFilter) ([]domain.AuditEntry, error)
	UsageStats(ctx context.Context, conferenceID, feature string, start, end time.Time) (domain.UsageStats, error)
	AcceptanceRate(ctx context.Context, conferenceID, feature string, days int) (usecase.AcceptanceRate, error)
}

// ReadinessCheck probes one dependency.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Server aggregates handler dependencies.
type Server struct {
	Cfg        config.Config
	Authors    usecase.AuthorService
	Reviewers  usecase.ReviewerService
	Chairs     usecase.ChairService
	Assignment usecase.AssignmentService
	Flags      FlagAdmin
	Audit      AuditReader
	Checks     []ReadinessCheck
	started    time.Time
}

// NewServer constructs an HTTP server with all handlers and checks wired.
func NewServer(cfg config.Config, authors usecase.AuthorService, reviewers usecase.ReviewerService, chairs usecase.ChairService, assign usecase.AssignmentService, flags FlagAdmin, audit AuditReader, checks ...ReadinessCheck) *Server {
	return &Server{
		Cfg:        cfg,
		Authors:    authors,
		Reviewers:  reviewers,
		Chairs:     chairs,
		Assignment: assign,
		Flags:      flags,
		Audit:      audit,
		Checks:     checks,
		started:    time.Now(),
	}
}

type checkResult struct {
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	Details string `json:"details,omitempty"`
}

func (s *Server) runChecks(ctx context.Context) ([]checkResult, bool) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	out := make([]checkResult, 0, len(s.Checks))
	ok := true
	for _, c := range s.Checks {
		res := checkResult{Name: c.Name, OK: true}
		if err := c.Check(ctx); err != nil {
			res.OK = false
			res.Details = err.Error()
			ok = false
		}
		out = append(out, res)
	}
	return out, ok
}

// ReadyzHandler probes every configured dependency.
func (s *Server) ReadyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks, ok := s.runChecks(r.Context())
		st := http.StatusOK
		if !ok {
			st = http.StatusServiceUnavailable
		}
		writeJSON(w, st, map[string]any{"checks": checks})
	}
}

// HealthHandler reports service identity, models and dependency status.
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks, ok := s.runChecks(r.Context())
		status := "healthy"
		if !ok {
			status = "degraded"
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":           status,
			"service":          s.Cfg.OTELServiceName,
			"version":          s.Cfg.ServiceVersion,
			"environment":      s.Cfg.AppEnv,
			"model":            s.Cfg.ModelName,
			"embeddings_model": s.Cfg.EmbeddingsModel,
			"audit_sink":       s.Cfg.AuditSink,
			"uptime_seconds":   int64(time.Since(s.started).Seconds()),
			"dependencies":     checks,
			"timestamp":        time.Now().UTC().Format(time.RFC3339),
		})
	}
}
