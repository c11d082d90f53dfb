package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fairyhunter13/confms-ai-service/internal/config"
	"github.com/fairyhunter13/confms-ai-service/internal/domain"
	obsctx "github.com/fairyhunter13/confms-ai-service/internal/observability"
	"github.com/fairyhunter13/confms-ai-service/pkg/llmjson"
	"github.com/fairyhunter13/confms-ai-service/pkg/textx"
)

// DefaultSynopsisTTL keeps generated synopses around for reviewers.
const DefaultSynopsisTTL = 24 * time.Hour

// ReviewerService builds anonymised summaries for reviewers.
type ReviewerService struct {
	*Assistant
	Docs        domain.DocumentStore
	SynopsisTTL time.Duration
	now         func() time.Time
}

// NewReviewerService stores synopses in docs for ttl (DefaultSynopsisTTL when zero).
func NewReviewerService(a *Assistant, docs domain.DocumentStore, ttl time.Duration) ReviewerService {
	if ttl <= 0 {
		ttl = DefaultSynopsisTTL
	}
	return ReviewerService{Assistant: a, Docs: docs, SynopsisTTL: ttl, now: func() time.Time { return time.Now().UTC() }}
}

// SynopsisKey is the document key of a stored synopsis.
func SynopsisKey(conferenceID, paperID string) string {
	return "synopsis:" + conferenceID + ":" + paperID
}

// SynopsisInput describes the paper to summarise.
type SynopsisInput struct {
	Caller
	PaperID     string
	Title       string
	Abstract    string
	Keywords    []string
	AuthorNames []string
	Length      domain.SynopsisLength
	Language    string
}

type synopsisReply struct {
	Synopsis         string   `json:"synopsis"`
	KeyThemes        []string `json:"key_themes"`
	Methodology      string   `json:"methodology"`
	ContributionType string   `json:"contribution_type"`
	Rationale        string   `json:"rationale"`
}

func validatePaper(paperID, title, abstract string) error {
	if paperID == "" {
		return fmt.Errorf("%w: paper_id is required", domain.ErrInvalidArgument)
	}
	if strings.TrimSpace(title) == "" || strings.TrimSpace(abstract) == "" {
		return fmt.Errorf("%w: title and abstract are required", domain.ErrInvalidArgument)
	}
	if utf8.RuneCountInString(title) > maxTitleRunes {
		return fmt.Errorf("%w: title exceeds %d characters", domain.ErrInvalidArgument, maxTitleRunes)
	}
	return nil
}

// GenerateSynopsis summarises a paper without identifying its authors and caches the result.
func (s ReviewerService) GenerateSynopsis(ctx context.Context, in SynopsisInput) (domain.Synopsis, error) {
	if err := validatePaper(in.PaperID, in.Title, in.Abstract); err != nil {
		return domain.Synopsis{}, err
	}
	if in.Length == "" {
		in.Length = domain.SynopsisMedium
	}
	lo, hi, ok := in.Length.WordRange()
	if !ok {
		return domain.Synopsis{}, fmt.Errorf("%w: length must be short, medium or long", domain.ErrInvalidArgument)
	}
	lang, err := normalizeLanguage(in.Language)
	if err != nil {
		return domain.Synopsis{}, err
	}
	ctx = obsctx.WithConference(ctx, in.ConferenceID, domain.FeaturePaperSynopsis)
	if err := s.Guard.Allow(ctx, in.ConferenceID, domain.FeaturePaperSynopsis); err != nil {
		return domain.Synopsis{}, err
	}

	lg := obsctx.LoggerFromContext(ctx)
	redacted := textx.RedactPII(in.Abstract, textx.RedactOptions{AuthorNames: in.AuthorNames, Emails: true, URLs: true, Phones: true})
	if redacted.HasPII {
		lg.Info("pii removed from abstract before synopsis", slog.String("paper_id", in.PaperID), slog.Int("items", len(redacted.Items)))
	}
	ex, err := s.ask(ctx, config.PromptSynopsis, struct {
		WordRange string
		Title     string
		Abstract  string
		Keywords  []string
		Language  string
	}{fmt.Sprintf("%d-%d words", lo, hi), in.Title, redacted.Text, in.Keywords, lang})
	if err != nil {
		return domain.Synopsis{}, err
	}
	res := llmjson.Decode[synopsisReply](ex.raw)
	if !res.OK() || strings.TrimSpace(res.Value.Synopsis) == "" {
		lg.Error("synopsis reply not usable", slog.String("paper_id", in.PaperID), slog.Any("error", res.Err))
		return domain.Synopsis{}, fmt.Errorf("%w: synopsis reply could not be parsed", domain.ErrUpstreamSchema)
	}

	text := res.Value.Synopsis
	if rep := textx.CheckAnonymity(text, in.AuthorNames); !rep.Valid {
		lg.Warn("synopsis anonymity issues redacted", slog.String("paper_id", in.PaperID), slog.Any("issues", rep.Issues))
		text = rep.Redacted
	}
	words := textx.WordCount(text)
	if words < lo || words > hi {
		lg.Warn("synopsis length outside target range",
			slog.String("paper_id", in.PaperID), slog.Int("words", words), slog.Int("min", lo), slog.Int("max", hi))
	}
	themes := res.Value.KeyThemes
	if themes == nil {
		themes = []string{}
	}
	out := domain.Synopsis{
		PaperID:          in.PaperID,
		ConferenceID:     in.ConferenceID,
		Synopsis:         text,
		KeyThemes:        themes,
		Methodology:      res.Value.Methodology,
		ContributionType: res.Value.ContributionType,
		WordCount:        words,
		Length:           in.Length,
		Rationale:        res.Value.Rationale,
		ModelUsed:        s.LLM.Model(),
		GeneratedAt:      s.stamp(),
	}
	if s.Docs != nil {
		if err := s.Docs.PutJSON(ctx, SynopsisKey(in.ConferenceID, in.PaperID), out, int64(s.SynopsisTTL/time.Second)); err != nil {
			lg.Warn("synopsis not cached", slog.String("paper_id", in.PaperID), slog.Any("error", err))
		}
	}
	s.record(ctx, in.Caller, domain.FeaturePaperSynopsis, "generate_synopsis", ex, nil, map[string]any{
		"paper_id":   in.PaperID,
		"length":     string(in.Length),
		"word_count": words,
	})
	return out, nil
}

// GetSynopsis returns a previously generated synopsis or ErrNotFound.
func (s ReviewerService) GetSynopsis(ctx context.Context, conferenceID, paperID string) (domain.Synopsis, error) {
	if paperID == "" {
		return domain.Synopsis{}, fmt.Errorf("%w: paper_id is required", domain.ErrInvalidArgument)
	}
	ctx = obsctx.WithConference(ctx, conferenceID, domain.FeaturePaperSynopsis)
	if err := s.Guard.Enabled(ctx, conferenceID, domain.FeaturePaperSynopsis); err != nil {
		return domain.Synopsis{}, err
	}
	if s.Docs == nil {
		return domain.Synopsis{}, domain.ErrNotFound
	}
	var out domain.Synopsis
	if err := s.Docs.GetJSON(ctx, SynopsisKey(conferenceID, paperID), &out); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Synopsis{}, fmt.Errorf("%w: no synopsis for paper %s", domain.ErrNotFound, paperID)
		}
		return domain.Synopsis{}, fmt.Errorf("op=usecase.GetSynopsis: %w", err)
	}
	return out, nil
}

// KeyPointsInput describes the paper to analyse.
type KeyPointsInput struct {
	Caller
	PaperID  string
	Title    string
	Abstract string
	Language string
}

type keyPointsReply struct {
	Claims      []domain.Claim   `json:"claims"`
	Methods     []domain.Method  `json:"methods"`
	Datasets    []domain.Dataset `json:"datasets"`
	Novelty     string           `json:"novelty"`
	Limitations string           `json:"limitations"`
}

// ExtractKeyPoints pulls claims, methods and datasets out of a paper.
func (s ReviewerService) ExtractKeyPoints(ctx context.Context, in KeyPointsInput) (domain.KeyPoints, error) {
	if err := validatePaper(in.PaperID, in.Title, in.Abstract); err != nil {
		return domain.KeyPoints{}, err
	}
	lang, err := normalizeLanguage(in.Language)
	if err != nil {
		return domain.KeyPoints{}, err
	}
	ctx = obsctx.WithConference(ctx, in.ConferenceID, domain.FeaturePaperSynopsis)
	if err := s.Guard.Allow(ctx, in.ConferenceID, domain.FeaturePaperSynopsis); err != nil {
		return domain.KeyPoints{}, err
	}
	ex, err := s.ask(ctx, config.PromptKeyPoints, struct {
		Title    string
		Abstract string
		Language string
	}{in.Title, in.Abstract, lang})
	if err != nil {
		return domain.KeyPoints{}, err
	}
	res := llmjson.Decode[keyPointsReply](ex.raw)
	if !res.OK() {
		obsctx.LoggerFromContext(ctx).Error("key points reply not parseable", slog.String("paper_id", in.PaperID), slog.Any("error", res.Err))
		return domain.KeyPoints{}, fmt.Errorf("%w: key points reply could not be parsed", domain.ErrUpstreamSchema)
	}
	v := res.Value
	out := domain.KeyPoints{
		PaperID:     in.PaperID,
		Claims:      nonNil(v.Claims),
		Methods:     nonNil(v.Methods),
		Datasets:    nonNil(v.Datasets),
		Novelty:     v.Novelty,
		Limitations: v.Limitations,
		ModelUsed:   s.LLM.Model(),
		ExtractedAt: s.stamp(),
	}
	for i := range out.Claims {
		out.Claims[i].Confidence = clamp01(out.Claims[i].Confidence)
	}
	s.record(ctx, in.Caller, domain.FeaturePaperSynopsis, "extract_keypoints", ex, nil, map[string]any{
		"paper_id":     in.PaperID,
		"claims_count": len(out.Claims),
	})
	return out, nil
}

func (s ReviewerService) stamp() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now().UTC()
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
