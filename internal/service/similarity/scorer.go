// Package similarity scores how well a reviewer's expertise fits a paper.
//
// The combined score blends embedding cosine similarity with keyword overlap,
// is rounded to three decimals and bucketed into an expertise tier.
package similarity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/fairyhunter13/confms-ai-service/internal/adapter/observability"
	"github.com/fairyhunter13/confms-ai-service/internal/domain"
	obsctx "github.com/fairyhunter13/confms-ai-service/internal/observability"
	"github.com/fairyhunter13/confms-ai-service/pkg/textx"
)

// Options tune scoring. The zero value is not useful; start from DefaultOptions.
type Options struct {
	EmbeddingWeight   float64
	KeywordWeight     float64
	HighThreshold     float64
	MediumThreshold   float64
	PastAbstractCap   int
	TopicSnippetRunes int
	MaxTopics         int
	// MaxTextRunes bounds title+abstract; longer papers are rejected.
	MaxTextRunes int
	// Concurrency bounds per-reviewer fan-out in RankReviewers.
	Concurrency int
}

// DefaultOptions returns the production weights and thresholds.
func DefaultOptions() Options {
	return Options{
		EmbeddingWeight:   0.7,
		KeywordWeight:     0.3,
		HighThreshold:     0.8,
		MediumThreshold:   0.6,
		PastAbstractCap:   3,
		TopicSnippetRunes: 500,
		MaxTopics:         5,
		MaxTextRunes:      20000,
		Concurrency:       4,
	}
}

// Scorer computes SimilarityScores. It holds no per-call state and is safe for concurrent use.
type Scorer struct {
	embedder domain.Embedder
	topics   domain.TopicExtractor
	opts     Options
}

// NewScorer builds a Scorer. A nil topic extractor disables topic extraction.
func NewScorer(embedder domain.Embedder, topics domain.TopicExtractor, opts Options) *Scorer {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Scorer{embedder: embedder, topics: topics, opts: opts}
}

// Options returns the active options.
func (s *Scorer) Options() Options { return s.opts }

// Score computes the similarity between one paper and one reviewer.
func (s *Scorer) Score(ctx context.Context, paper domain.Paper, reviewer domain.Reviewer) (domain.SimilarityScore, error) {
	if err := s.validatePaper(paper); err != nil {
		return domain.SimilarityScore{}, fmt.Errorf("op=similarity.Score: %w", err)
	}
	paperVec, err := s.embedOne(ctx, PaperText(paper))
	if err != nil {
		return domain.SimilarityScore{}, fmt.Errorf("op=similarity.Score: paper: %w", err)
	}
	out, err := s.scoreWith(ctx, paper, paperVec, reviewer)
	if err != nil {
		return domain.SimilarityScore{}, fmt.Errorf("op=similarity.Score: %w", err)
	}
	return out, nil
}

// RankReviewers scores every known candidate against paper and returns them
// ordered by score descending; ties keep candidate order. Unknown candidates,
// reviewers without any expertise text and reviewers whose scoring fails are skipped. The paper is embedded once; if that
// fails the whole call fails with ErrEmbeddingUnavailable.
func (s *Scorer) RankReviewers(ctx context.Context, paper domain.Paper, candidateIDs []string, reviewers map[string]domain.Reviewer) ([]domain.Match, error) {
	lg := obsctx.LoggerFromContext(ctx)
	if err := s.validatePaper(paper); err != nil {
		return nil, fmt.Errorf("op=similarity.RankReviewers: %w", err)
	}
	paperVec, err := s.embedOne(ctx, PaperText(paper))
	if err != nil {
		return nil, fmt.Errorf("op=similarity.RankReviewers: paper %s: %w", paper.ID, err)
	}

	slots := make([]*domain.SimilarityScore, len(candidateIDs))
	var g errgroup.Group
	g.SetLimit(s.opts.Concurrency)
	for i, id := range candidateIDs {
		rv, ok := reviewers[id]
		if !ok {
			lg.Warn("reviewer data missing; skipping", slog.String("paper_id", paper.ID), slog.String("reviewer_id", id))
			continue
		}
		if rv.ID == "" {
			rv.ID = id
		}
		g.Go(func() error {
			sc, err := s.scoreWith(ctx, paper, paperVec, rv)
			if err != nil {
				lg.Warn("reviewer scoring failed; skipping",
					slog.String("paper_id", paper.ID),
					slog.String("reviewer_id", rv.ID),
					slog.Any("error", err))
				return nil
			}
			slots[i] = &sc
			return nil
		})
	}
	_ = g.Wait() // workers never return errors; failures are per reviewer

	matches := make([]domain.Match, 0, len(slots))
	for _, sc := range slots {
		if sc == nil {
			continue
		}
		matches = append(matches, domain.Match{SimilarityScore: *sc, Confidence: sc.Score})
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	return matches, nil
}

func (s *Scorer) validatePaper(p domain.Paper) error {
	if textx.IsBlank(p.Title) && textx.IsBlank(p.Abstract) {
		return fmt.Errorf("%w: paper %q has neither title nor abstract", domain.ErrInvalidInput, p.ID)
	}
	if s.opts.MaxTextRunes > 0 && utf8.RuneCountInString(p.Title)+utf8.RuneCountInString(p.Abstract) > s.opts.MaxTextRunes {
		return fmt.Errorf("%w: paper %q text exceeds %d characters", domain.ErrInvalidInput, p.ID, s.opts.MaxTextRunes)
	}
	return nil
}

// validateReviewer rejects reviewers with no expertise keyword and no past abstract.
func validateReviewer(rv domain.Reviewer) error {
	for _, t := range rv.ExpertiseKeywords {
		if !textx.IsBlank(t) {
			return nil
		}
	}
	for _, t := range rv.PastAbstracts {
		if !textx.IsBlank(t) {
			return nil
		}
	}
	return fmt.Errorf("%w: reviewer %q has neither expertise keywords nor past abstracts", domain.ErrInvalidInput, rv.ID)
}

func (s *Scorer) scoreWith(ctx context.Context, paper domain.Paper, paperVec []float32, rv domain.Reviewer) (domain.SimilarityScore, error) {
	if err := validateReviewer(rv); err != nil {
		return domain.SimilarityScore{}, err
	}
	rvVec, err := s.embedOne(ctx, ReviewerText(rv, s.opts.PastAbstractCap))
	if err != nil {
		return domain.SimilarityScore{}, fmt.Errorf("reviewer %s: %w", rv.ID, err)
	}
	emb := EmbeddingSimilarity(paperVec, rvVec)
	matching := MatchKeywords(paper.Keywords, rv.ExpertiseKeywords)
	kw := KeywordScore(len(matching), len(paper.Keywords))
	score := Round3(clamp01(s.opts.EmbeddingWeight*emb + s.opts.KeywordWeight*kw))
	tier := s.Tier(score)

	var topics []string
	if s.topics != nil {
		snippet := textx.TruncateRunes(paper.Abstract, s.opts.TopicSnippetRunes)
		topics = s.topics.ExtractCommonTopics(ctx, snippet, rv.ExpertiseKeywords)
	}
	if len(topics) > s.opts.MaxTopics {
		topics = topics[:s.opts.MaxTopics]
	}
	if topics == nil {
		topics = []string{}
	}

	observability.ObserveSimilarity(score)
	return domain.SimilarityScore{
		ReviewerID:       rv.ID,
		Score:            score,
		MatchingKeywords: matching,
		CommonTopics:     topics,
		Tier:             tier,
		Rationale:        Rationale(matching, topics, tier, score),
	}, nil
}

func (s *Scorer) embedOne(ctx context.Context, text string) ([]float32, error) {
	vecs, err := s.embedder.Embed(ctx, []string{text})
	if err != nil {
		if errors.Is(err, domain.ErrEmbeddingUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrEmbeddingUnavailable, err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("%w: expected 1 vector, got %d", domain.ErrEmbeddingUnavailable, len(vecs))
	}
	return vecs[0], nil
}

// Tier buckets an already rounded score.
func (s *Scorer) Tier(score float64) domain.ExpertiseTier {
	switch {
	case score >= s.opts.HighThreshold:
		return domain.TierHigh
	case score >= s.opts.MediumThreshold:
		return domain.TierMedium
	default:
		return domain.TierLow
	}
}

// PaperText is the text embedded for a paper.
func PaperText(p domain.Paper) string {
	text := p.Title + "\n\n" + p.Abstract
	if len(p.Keywords) > 0 {
		text += "\n\nKeywords: " + strings.Join(p.Keywords, ", ")
	}
	return text
}

// ReviewerText is the text embedded for a reviewer; at most pastCap past abstracts are used.
func ReviewerText(r domain.Reviewer, pastCap int) string {
	text := "Expertise: " + strings.Join(r.ExpertiseKeywords, ", ")
	past := r.PastAbstracts
	if pastCap >= 0 && len(past) > pastCap {
		past = past[:pastCap]
	}
	if len(past) > 0 {
		text += "\n\nPrevious work:\n" + strings.Join(past, "\n\n")
	}
	return text
}

// Rationale explains a score in one line.
func Rationale(matching, topics []string, tier domain.ExpertiseTier, score float64) string {
	var parts []string
	if len(matching) > 0 {
		parts = append(parts, "Matching keywords: "+strings.Join(firstN(matching, 3), ", "))
	}
	if len(topics) > 0 {
		parts = append(parts, "Common topics: "+strings.Join(firstN(topics, 3), ", "))
	}
	switch tier {
	case domain.TierHigh:
		parts = append(parts, "High expertise match")
	case domain.TierMedium:
		parts = append(parts, "Medium expertise match")
	case domain.TierLow:
		parts = append(parts, "Limited expertise match")
	}
	if len(parts) == 0 {
		return fmt.Sprintf("Similarity score: %.2f", score)
	}
	return strings.Join(parts, ". ")
}

func firstN(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// Round3 rounds to three decimals, half away from zero.
func Round3(x float64) float64 {
	return math.Round(x*1000) / 1000
}

func clamp01(x float64) float64 {
	if math.IsNaN(x) || x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
