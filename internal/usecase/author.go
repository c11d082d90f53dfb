package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/fairyhunter13/confms-ai-service/internal/config"
	"github.com/fairyhunter13/confms-ai-service/internal/domain"
	obsctx "github.com/fairyhunter13/confms-ai-service/internal/observability"
	"github.com/fairyhunter13/confms-ai-service/pkg/llmjson"
)

const (
	maxCheckTextRunes = 10000
	maxAbstractRunes  = 2000
	maxTitleRunes     = 500
)

// AuthorService helps authors with language checks, polishing and keywords.
type AuthorService struct {
	*Assistant
}

// NewAuthorService wires an AuthorService onto shared plumbing.
func NewAuthorService(a *Assistant) AuthorService { return AuthorService{Assistant: a} }

// TextCheckInput is shared by spelling and grammar checks.
type TextCheckInput struct {
	Caller
	Text     string
	Language string
}

func (in TextCheckInput) validate() (string, error) {
	if strings.TrimSpace(in.Text) == "" {
		return "", fmt.Errorf("%w: text is required", domain.ErrInvalidArgument)
	}
	if utf8.RuneCountInString(in.Text) > maxCheckTextRunes {
		return "", fmt.Errorf("%w: text exceeds %d characters", domain.ErrInvalidArgument, maxCheckTextRunes)
	}
	return normalizeLanguage(in.Language)
}

type textPrompt struct {
	Text     string
	Language string
}

// CheckSpelling lists misspelled words. An unparseable reply yields an empty list.
func (s AuthorService) CheckSpelling(ctx context.Context, in TextCheckInput) ([]domain.SpellingError, error) {
	lang, err := in.validate()
	if err != nil {
		return nil, err
	}
	ctx = obsctx.WithConference(ctx, in.ConferenceID, domain.FeatureGrammarCheck)
	if err := s.Guard.Allow(ctx, in.ConferenceID, domain.FeatureGrammarCheck); err != nil {
		return nil, err
	}
	ex, err := s.ask(ctx, config.PromptSpelling, textPrompt{Text: in.Text, Language: lang})
	if err != nil {
		return nil, err
	}
	res := llmjson.Decode[[]domain.SpellingError](ex.raw)
	if !res.OK() {
		obsctx.LoggerFromContext(ctx).Warn("spelling reply not parseable", slog.Any("error", res.Err))
	}
	out := res.Or(nil)
	if out == nil {
		out = []domain.SpellingError{}
	}
	s.record(ctx, in.Caller, domain.FeatureGrammarCheck, "check_spelling", ex, nil, map[string]any{"errors_found": len(out), "language": lang})
	return out, nil
}

// CheckGrammar lists grammar issues. An unparseable reply yields an empty list.
func (s AuthorService) CheckGrammar(ctx context.Context, in TextCheckInput) ([]domain.GrammarError, error) {
	lang, err := in.validate()
	if err != nil {
		return nil, err
	}
	ctx = obsctx.WithConference(ctx, in.ConferenceID, domain.FeatureGrammarCheck)
	if err := s.Guard.Allow(ctx, in.ConferenceID, domain.FeatureGrammarCheck); err != nil {
		return nil, err
	}
	ex, err := s.ask(ctx, config.PromptGrammar, textPrompt{Text: in.Text, Language: lang})
	if err != nil {
		return nil, err
	}
	res := llmjson.Decode[[]domain.GrammarError](ex.raw)
	if !res.OK() {
		obsctx.LoggerFromContext(ctx).Warn("grammar reply not parseable", slog.Any("error", res.Err))
	}
	out := res.Or(nil)
	if out == nil {
		out = []domain.GrammarError{}
	}
	s.record(ctx, in.Caller, domain.FeatureGrammarCheck, "check_grammar", ex, nil, map[string]any{"errors_found": len(out), "language": lang})
	return out, nil
}

// PolishInput asks for an abstract rewrite preview.
type PolishInput struct {
	Caller
	PaperID         string
	Abstract        string
	Language        string
	PreserveMeaning bool
	EnhanceTone     bool
}

// PolishFallbackRationale is returned when the model reply cannot be used.
const PolishFallbackRationale = "The abstract could not be polished automatically; the original text is returned unchanged."

type polishReply struct {
	Polished        string                `json:"polished"`
	Changes         []domain.PolishChange `json:"changes"`
	Rationale       string                `json:"rationale"`
	ConfidenceScore float64               `json:"confidence_score"`
}

// PolishAbstract returns a preview; nothing is applied until ApplyPolish.
func (s AuthorService) PolishAbstract(ctx context.Context, in PolishInput) (domain.PolishResult, error) {
	if strings.TrimSpace(in.Abstract) == "" {
		return domain.PolishResult{}, fmt.Errorf("%w: abstract is required", domain.ErrInvalidArgument)
	}
	if utf8.RuneCountInString(in.Abstract) > maxAbstractRunes {
		return domain.PolishResult{}, fmt.Errorf("%w: abstract exceeds %d characters", domain.ErrInvalidArgument, maxAbstractRunes)
	}
	lang, err := normalizeLanguage(in.Language)
	if err != nil {
		return domain.PolishResult{}, err
	}
	ctx = obsctx.WithConference(ctx, in.ConferenceID, domain.FeaturePolishContent)
	if err := s.Guard.Allow(ctx, in.ConferenceID, domain.FeaturePolishContent); err != nil {
		return domain.PolishResult{}, err
	}
	ex, err := s.ask(ctx, config.PromptPolish, struct {
		Abstract        string
		Language        string
		PreserveMeaning bool
		EnhanceTone     bool
	}{in.Abstract, lang, in.PreserveMeaning, in.EnhanceTone})
	if err != nil {
		return domain.PolishResult{}, err
	}

	out := domain.PolishResult{Original: in.Abstract, Changes: []domain.PolishChange{}}
	res := llmjson.Decode[polishReply](ex.raw)
	if res.OK() && strings.TrimSpace(res.Value.Polished) != "" {
		out.Polished = res.Value.Polished
		if res.Value.Changes != nil {
			out.Changes = res.Value.Changes
		}
		out.Rationale = res.Value.Rationale
		out.ConfidenceScore = clamp01(res.Value.ConfidenceScore)
	} else {
		obsctx.LoggerFromContext(ctx).Warn("polish reply not usable", slog.Any("error", res.Err))
		out.Polished = in.Abstract
		out.Rationale = PolishFallbackRationale
	}
	s.record(ctx, in.Caller, domain.FeaturePolishContent, "polish_abstract", ex, nil, map[string]any{
		"paper_id":      in.PaperID,
		"changes_count": len(out.Changes),
		"confidence":    out.ConfidenceScore,
	})
	return out, nil
}

// KeywordInput asks for ranked keyword suggestions.
type KeywordInput struct {
	Caller
	PaperID     string
	Title       string
	Abstract    string
	Language    string
	MaxKeywords int
}

// SuggestKeywords returns at most MaxKeywords (1..10, default 5) keywords by descending score.
func (s AuthorService) SuggestKeywords(ctx context.Context, in KeywordInput) ([]domain.KeywordSuggestion, error) {
	if strings.TrimSpace(in.Title) == "" && strings.TrimSpace(in.Abstract) == "" {
		return nil, fmt.Errorf("%w: title or abstract is required", domain.ErrInvalidArgument)
	}
	if utf8.RuneCountInString(in.Title) > maxTitleRunes {
		return nil, fmt.Errorf("%w: title exceeds %d characters", domain.ErrInvalidArgument, maxTitleRunes)
	}
	if utf8.RuneCountInString(in.Abstract) > maxAbstractRunes {
		return nil, fmt.Errorf("%w: abstract exceeds %d characters", domain.ErrInvalidArgument, maxAbstractRunes)
	}
	if in.MaxKeywords == 0 {
		in.MaxKeywords = 5
	}
	if in.MaxKeywords < 1 || in.MaxKeywords > 10 {
		return nil, fmt.Errorf("%w: max_keywords must be between 1 and 10", domain.ErrInvalidArgument)
	}
	lang, err := normalizeLanguage(in.Language)
	if err != nil {
		return nil, err
	}
	ctx = obsctx.WithConference(ctx, in.ConferenceID, domain.FeatureKeywordSuggestion)
	if err := s.Guard.Allow(ctx, in.ConferenceID, domain.FeatureKeywordSuggestion); err != nil {
		return nil, err
	}
	ex, err := s.ask(ctx, config.PromptKeywords, struct {
		Title       string
		Abstract    string
		Language    string
		MaxKeywords int
	}{in.Title, in.Abstract, lang, in.MaxKeywords})
	if err != nil {
		return nil, err
	}

	type item struct {
		Keyword  string  `json:"keyword"`
		Score    float64 `json:"score"`
		Reason   string  `json:"reason"`
		Category string  `json:"category"`
	}
	res := llmjson.Decode[[]item](ex.raw)
	if !res.OK() {
		obsctx.LoggerFromContext(ctx).Warn("keyword reply not parseable", slog.Any("error", res.Err))
	}
	raw := make([]domain.KeywordSuggestion, 0, len(res.Value))
	for _, it := range res.Value {
		raw = append(raw, domain.KeywordSuggestion{Keyword: it.Keyword, Score: it.Score, Reason: it.Reason, Category: it.Category})
	}
	out := RankKeywords(raw, in.Title, in.Abstract)
	if len(out) > in.MaxKeywords {
		out = out[:in.MaxKeywords]
	}
	s.record(ctx, in.Caller, domain.FeatureKeywordSuggestion, "suggest_keywords", ex, nil, map[string]any{
		"paper_id":       in.PaperID,
		"keywords_count": len(out),
	})
	return out, nil
}

// RankKeywords deduplicates case-insensitively, keeps keywords of 2..50 characters,
// boosts title hits by 0.1 and repeated abstract hits by 0.05 per extra occurrence,
// caps scores at 1.0 and sorts descending. Ties keep model order.
func RankKeywords(in []domain.KeywordSuggestion, title, abstract string) []domain.KeywordSuggestion {
	seen := make(map[string]bool, len(in))
	lowerTitle := strings.ToLower(title)
	lowerAbstract := strings.ToLower(abstract)
	out := make([]domain.KeywordSuggestion, 0, len(in))
	for _, kw := range in {
		k := strings.TrimSpace(kw.Keyword)
		lk := strings.ToLower(k)
		if lk == "" || seen[lk] {
			continue
		}
		seen[lk] = true
		if n := utf8.RuneCountInString(k); n < 2 || n > 50 {
			continue
		}
		kw.Keyword = k
		score := kw.Score
		if strings.Contains(lowerTitle, lk) {
			score += 0.1
		}
		if c := strings.Count(lowerAbstract, lk); c > 1 {
			score += 0.05 * float64(c-1)
		}
		kw.Score = roundScore(clamp01(score))
		out = append(out, kw)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// ApplyPolishInput records the author's decision on a polish preview.
type ApplyPolishInput struct {
	Caller
	PaperID          string
	PolishedAbstract string
	UserConfirmed    bool
}

// ApplyPolishResult reports whether the decision was logged.
type ApplyPolishResult struct {
	Success     bool   `json:"success"`
	AuditLogged bool   `json:"audit_logged"`
	Message     string `json:"message"`
}

// ApplyPolish audits the author's decision. The paper itself is updated by the main backend.
func (s AuthorService) ApplyPolish(ctx context.Context, in ApplyPolishInput) (ApplyPolishResult, error) {
	if in.PaperID == "" {
		return ApplyPolishResult{}, fmt.Errorf("%w: paper_id is required", domain.ErrInvalidArgument)
	}
	ctx = obsctx.WithConference(ctx, in.ConferenceID, domain.FeaturePolishContent)
	if err := s.Guard.Enabled(ctx, in.ConferenceID, domain.FeaturePolishContent); err != nil {
		return ApplyPolishResult{}, err
	}
	summary := fmt.Sprintf("author rejected polished abstract for paper %s", in.PaperID)
	msg := "Polished abstract rejection recorded."
	if in.UserConfirmed {
		summary = fmt.Sprintf("author accepted polished abstract for paper %s", in.PaperID)
		msg = "Polished abstract accepted and recorded. Update the paper through the backend API."
	}
	id := s.Audit.Record(ctx, AuditRecord{
		ConferenceID: in.ConferenceID,
		UserID:       in.UserID,
		Feature:      domain.FeaturePolishContent,
		Action:       "apply_polish",
		Prompt:       "paper_id: " + in.PaperID,
		ModelID:      "system",
		Output:       summary,
		Accepted:     boolPtr(in.UserConfirmed),
		Metadata:     map[string]any{"paper_id": in.PaperID, "polished_runes": utf8.RuneCountInString(in.PolishedAbstract)},
	})
	return ApplyPolishResult{Success: true, AuditLogged: id != "", Message: msg}, nil
}

func clamp01(x float64) float64 {
	switch {
	case x < 0:
		return 0
	case x > 1:
		return 1
	}
	return x
}

func roundScore(x float64) float64 {
	return float64(int64(x*1000+0.5)) / 1000
}
