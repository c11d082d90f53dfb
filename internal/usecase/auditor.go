package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fairyhunter13/confms-ai-service/internal/adapter/observability"
	"github.com/fairyhunter13/confms-ai-service/internal/domain"
	obsctx "github.com/fairyhunter13/confms-ai-service/internal/observability"
	"github.com/fairyhunter13/confms-ai-service/pkg/textx"
)

const (
	maxAuditPromptRunes  = 10000
	maxAuditSummaryRunes = 5000
	anonymousUser        = "anonymous"
)

// AuditRecord is what a feature service reports after an AI call.
type AuditRecord struct {
	ConferenceID string
	UserID       string
	Feature      string
	Action       string
	System       string
	Prompt       string
	ModelID      string
	Output       string
	Accepted     *bool
	Metadata     map[string]any
}

// Auditor writes audit entries through a sink and answers governance queries from the repository.
type Auditor struct {
	Sink      domain.AuditSink
	Repo      domain.AuditRepository
	SinkName  string
	RedactPII bool
	now       func() time.Time
	newID     func() string
}

// NewAuditor builds an Auditor. sinkName labels metrics ("postgres" or "kafka").
func NewAuditor(sink domain.AuditSink, repo domain.AuditRepository, sinkName string, redactPII bool) *Auditor {
	return &Auditor{
		Sink:      sink,
		Repo:      repo,
		SinkName:  sinkName,
		RedactPII: redactPII,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     func() string { return uuid.NewString() },
	}
}

// InputHash is the hex sha256 of system followed by prompt.
func InputHash(system, prompt string) string {
	h := sha256.Sum256([]byte(system + prompt))
	return hex.EncodeToString(h[:])
}

// Record stores one entry and returns its id. It never fails the caller:
// sink errors are logged and "" is returned.
func (a *Auditor) Record(ctx context.Context, r AuditRecord) string {
	if a == nil || a.Sink == nil {
		return ""
	}
	prompt := r.Prompt
	if a.RedactPII {
		prompt = textx.RedactPII(prompt, textx.DefaultRedactOptions()).Text
	}
	user := r.UserID
	if user == "" {
		user = anonymousUser
	}
	e := domain.AuditEntry{
		ID:            a.newID(),
		Timestamp:     a.now(),
		ConferenceID:  r.ConferenceID,
		UserID:        user,
		Feature:       r.Feature,
		Action:        r.Action,
		Prompt:        textx.TruncateRunes(prompt, maxAuditPromptRunes),
		ModelID:       r.ModelID,
		InputHash:     InputHash(r.System, r.Prompt),
		OutputSummary: textx.Summarize(r.Output, maxAuditSummaryRunes),
		Accepted:      r.Accepted,
		Metadata:      withRequestID(ctx, r.Metadata),
	}
	if err := a.Sink.Write(ctx, e); err != nil {
		observability.AuditEvent(a.SinkName, "error")
		obsctx.LoggerFromContext(obsctx.WithConference(ctx, e.ConferenceID, e.Feature)).Error("audit write failed",
			slog.String("action", e.Action),
			slog.Any("error", err))
		return ""
	}
	observability.AuditEvent(a.SinkName, "written")
	return e.ID
}

// withRequestID copies meta and adds the originating request_id when ctx carries one.
func withRequestID(ctx context.Context, meta map[string]any) map[string]any {
	rid := obsctx.RequestIDFromContext(ctx)
	if rid == "" {
		return meta
	}
	out := make(map[string]any, len(meta)+1)
	for k, v := range meta {
		out[k] = v
	}
	out["request_id"] = rid
	return out
}

// AuditFilter is the query surface exposed to operators.
type AuditFilter struct {
	ConferenceID string
	UserID       string
	Feature      string
	Limit        int
	Offset       int
}

// Query lists entries newest first. Limit must be 1..1000 (0 means 100).
func (a *Auditor) Query(ctx context.Context, f AuditFilter) ([]domain.AuditEntry, error) {
	if f.Limit == 0 {
		f.Limit = 100
	}
	if f.Limit < 1 || f.Limit > 1000 {
		return nil, fmt.Errorf("%w: limit must be between 1 and 1000", domain.ErrInvalidArgument)
	}
	if f.Offset < 0 {
		return nil, fmt.Errorf("%w: offset must be >= 0", domain.ErrInvalidArgument)
	}
	return a.Repo.Query(ctx, domain.AuditQuery(f))
}

// UsageStats aggregates decisions per feature. Zero start means 30 days before end; zero end means now.
func (a *Auditor) UsageStats(ctx context.Context, conferenceID, feature string, start, end time.Time) (domain.UsageStats, error) {
	if conferenceID == "" {
		return domain.UsageStats{}, fmt.Errorf("%w: conference_id is required", domain.ErrInvalidArgument)
	}
	if end.IsZero() {
		end = a.now()
	}
	if start.IsZero() {
		start = end.AddDate(0, 0, -30)
	}
	if start.After(end) {
		return domain.UsageStats{}, fmt.Errorf("%w: start_date must not be after end_date", domain.ErrInvalidArgument)
	}
	return a.Repo.UsageStats(ctx, domain.UsageQuery{ConferenceID: conferenceID, Feature: feature, Start: start, End: end})
}

// AcceptanceRate is the overall accepted/(accepted+rejected) ratio over the last days (1..365, 0 means 30).
type AcceptanceRate struct {
	ConferenceID   string  `json:"conference_id"`
	Feature        string  `json:"feature,omitempty"`
	Days           int     `json:"days"`
	Accepted       int     `json:"accepted"`
	Rejected       int     `json:"rejected"`
	AcceptanceRate float64 `json:"acceptance_rate"`
}

// AcceptanceRate reports how often AI suggestions were accepted.
func (a *Auditor) AcceptanceRate(ctx context.Context, conferenceID, feature string, days int) (AcceptanceRate, error) {
	if days == 0 {
		days = 30
	}
	if days < 1 || days > 365 {
		return AcceptanceRate{}, fmt.Errorf("%w: days must be between 1 and 365", domain.ErrInvalidArgument)
	}
	end := a.now()
	stats, err := a.UsageStats(ctx, conferenceID, feature, end.AddDate(0, 0, -days), end)
	if err != nil {
		return AcceptanceRate{}, err
	}
	sum := domain.FeatureUsage{Accepted: stats.Accepted, Rejected: stats.Rejected}
	return AcceptanceRate{
		ConferenceID:   conferenceID,
		Feature:        feature,
		Days:           days,
		Accepted:       sum.Accepted,
		Rejected:       sum.Rejected,
		AcceptanceRate: sum.Rate(),
	}, nil
}

// RepoSink writes entries straight to the repository.
type RepoSink struct {
	Repo domain.AuditRepository
}

// Write implements domain.AuditSink.
func (s RepoSink) Write(ctx domain.Context, e domain.AuditEntry) error {
	return s.Repo.Insert(ctx, e)
}
