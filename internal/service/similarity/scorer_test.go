package similarity

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/confms-ai-service/internal/domain"
)

type embedFunc func(text string) ([]float32, error)

func (f embedFunc) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		v, err := f(t)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

type staticTopics struct {
	topics []string
	calls  atomic.Int32
}

func (s *staticTopics) ExtractCommonTopics(_ context.Context, _ string, _ []string) []string {
	s.calls.Add(1)
	return append([]string(nil), s.topics...)
}

// vectors picks a vector for reviewer text by its expertise line; paper text gets [1,0].
func vectors(byExpertise map[string][]float32) embedFunc {
	return func(text string) ([]float32, error) {
		if strings.HasPrefix(text, "Expertise: ") {
			line := strings.SplitN(strings.TrimPrefix(text, "Expertise: "), "\n", 2)[0]
			if v, ok := byExpertise[line]; ok {
				return v, nil
			}
			return nil, errors.New("no vector for " + line)
		}
		return []float32{1, 0}, nil
	}
}

func TestScore_IdenticalEmbeddingsAndKeywords(t *testing.T) {
	topics := &staticTopics{topics: []string{"language models", "parsing"}}
	s := NewScorer(vectors(map[string][]float32{"ml, nlp": {1, 0}}), topics, DefaultOptions())

	got, err := s.Score(context.Background(),
		domain.Paper{ID: "P1", Title: "T", Abstract: "A", Keywords: []string{"ml", "nlp"}},
		domain.Reviewer{ID: "R1", ExpertiseKeywords: []string{"ml", "nlp"}},
	)
	require.NoError(t, err)
	assert.Equal(t, 1.0, got.Score)
	assert.Equal(t, domain.TierHigh, got.Tier)
	assert.Equal(t, []string{"ml", "nlp"}, got.MatchingKeywords)
	assert.Equal(t, []string{"language models", "parsing"}, got.CommonTopics)
	assert.Equal(t, "Matching keywords: ml, nlp. Common topics: language models, parsing. High expertise match", got.Rationale)
}

func TestScore_OppositeEmbeddingsNoKeywords(t *testing.T) {
	s := NewScorer(vectors(map[string][]float32{"biology": {-1, 0}}), nil, DefaultOptions())

	got, err := s.Score(context.Background(),
		domain.Paper{ID: "P1", Title: "T", Abstract: "A"},
		domain.Reviewer{ID: "R1", ExpertiseKeywords: []string{"biology"}},
	)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got.Score)
	assert.Equal(t, domain.TierLow, got.Tier)
	assert.Empty(t, got.MatchingKeywords)
	assert.NotNil(t, got.CommonTopics)
	assert.Equal(t, "Limited expertise match", got.Rationale)
}

func TestScore_WeightedAndRounded(t *testing.T) {
	// orthogonal vectors: embedding similarity 0.5; one of three keywords matches.
	s := NewScorer(vectors(map[string][]float32{"graphs": {0, 1}}), nil, DefaultOptions())

	got, err := s.Score(context.Background(),
		domain.Paper{ID: "P1", Title: "T", Abstract: "A", Keywords: []string{"graphs", "chemistry", "proteins"}},
		domain.Reviewer{ID: "R1", ExpertiseKeywords: []string{"graphs"}},
	)
	require.NoError(t, err)
	// 0.7*0.5 + 0.3*(1/3) = 0.45
	assert.Equal(t, 0.45, got.Score)
	assert.Equal(t, domain.TierLow, got.Tier)
	assert.Equal(t, "Matching keywords: graphs. Limited expertise match", got.Rationale)
}

func TestScore_InvalidInput(t *testing.T) {
	s := NewScorer(vectors(nil), nil, DefaultOptions())
	_, err := s.Score(context.Background(), domain.Paper{ID: "P1", Title: "  ", Abstract: "\n"}, domain.Reviewer{ID: "R1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	opts := DefaultOptions()
	opts.MaxTextRunes = 10
	s = NewScorer(vectors(nil), nil, opts)
	_, err = s.Score(context.Background(), domain.Paper{ID: "P1", Title: "T", Abstract: strings.Repeat("x", 20)}, domain.Reviewer{ID: "R1"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestScore_ReviewerWithoutExpertise(t *testing.T) {
	embedded := 0
	s := NewScorer(embedFunc(func(string) ([]float32, error) {
		embedded++
		return []float32{1, 0}, nil
	}), nil, DefaultOptions())
	paper := domain.Paper{ID: "P1", Title: "T", Abstract: "A"}

	_, err := s.Score(context.Background(), paper, domain.Reviewer{ID: "R1", ExpertiseKeywords: []string{" "}, PastAbstracts: []string{""}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Equal(t, 1, embedded, "only the paper is embedded")

	got, err := s.RankReviewers(context.Background(), paper, []string{"R1", "R2"}, map[string]domain.Reviewer{
		"R1": {ID: "R1"},
		"R2": {ID: "R2", PastAbstracts: []string{"Earlier work."}},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "R2", got[0].ReviewerID)
}

func TestScore_EmbeddingFailure(t *testing.T) {
	s := NewScorer(embedFunc(func(string) ([]float32, error) { return nil, errors.New("provider down") }), nil, DefaultOptions())
	_, err := s.Score(context.Background(), domain.Paper{ID: "P1", Title: "T"}, domain.Reviewer{ID: "R1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}

func TestTierBoundaries(t *testing.T) {
	s := NewScorer(vectors(nil), nil, DefaultOptions())
	assert.Equal(t, domain.TierHigh, s.Tier(0.8))
	assert.Equal(t, domain.TierHigh, s.Tier(1))
	assert.Equal(t, domain.TierMedium, s.Tier(0.6))
	assert.Equal(t, domain.TierMedium, s.Tier(0.799))
	assert.Equal(t, domain.TierLow, s.Tier(0.599))
	assert.Equal(t, domain.TierLow, s.Tier(0))
}

func TestRankReviewers_OrderingAndSkips(t *testing.T) {
	s := NewScorer(vectors(map[string][]float32{
		"a": {0, 1},  // 0.5 embedding
		"b": {1, 0},  // 1.0 embedding
		"c": {0, -1}, // 0.5 embedding, ties with a
		// "broken" has no vector: scoring fails and the reviewer is skipped
	}), nil, DefaultOptions())

	reviewers := map[string]domain.Reviewer{
		"RA": {ID: "RA", ExpertiseKeywords: []string{"a"}},
		"RB": {ID: "RB", ExpertiseKeywords: []string{"b"}},
		"RC": {ID: "RC", ExpertiseKeywords: []string{"c"}},
		"RX": {ID: "RX", ExpertiseKeywords: []string{"broken"}},
	}
	got, err := s.RankReviewers(context.Background(),
		domain.Paper{ID: "P1", Title: "T", Abstract: "A"},
		[]string{"RA", "RMissing", "RX", "RB", "RC"},
		reviewers,
	)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "RB", got[0].ReviewerID)
	assert.Equal(t, "RA", got[1].ReviewerID, "ties keep candidate order")
	assert.Equal(t, "RC", got[2].ReviewerID)
	for _, m := range got {
		assert.Equal(t, m.Score, m.Confidence)
		assert.GreaterOrEqual(t, m.Score, 0.0)
		assert.LessOrEqual(t, m.Score, 1.0)
	}
}

func TestRankReviewers_MissingReviewerIsSilent(t *testing.T) {
	s := NewScorer(vectors(map[string][]float32{"x": {1, 0}}), nil, DefaultOptions())
	got, err := s.RankReviewers(context.Background(),
		domain.Paper{ID: "P1", Title: "T"},
		[]string{"R1", "R2"},
		map[string]domain.Reviewer{"R1": {ExpertiseKeywords: []string{"x"}}},
	)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "R1", got[0].ReviewerID, "id falls back to the map key")
}

func TestRankReviewers_PaperEmbeddingFailure(t *testing.T) {
	s := NewScorer(embedFunc(func(text string) ([]float32, error) {
		if strings.HasPrefix(text, "Expertise: ") {
			return []float32{1}, nil
		}
		return nil, errors.New("timeout")
	}), nil, DefaultOptions())

	_, err := s.RankReviewers(context.Background(), domain.Paper{ID: "P1", Title: "T"}, []string{"R1"},
		map[string]domain.Reviewer{"R1": {ID: "R1"}})
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}

func TestRankReviewers_Deterministic(t *testing.T) {
	topics := &staticTopics{topics: []string{"t1"}}
	s := NewScorer(vectors(map[string][]float32{"a": {1, 1}, "b": {1, 0}, "c": {0, 1}}), topics, DefaultOptions())
	reviewers := map[string]domain.Reviewer{
		"R1": {ID: "R1", ExpertiseKeywords: []string{"a"}},
		"R2": {ID: "R2", ExpertiseKeywords: []string{"b"}},
		"R3": {ID: "R3", ExpertiseKeywords: []string{"c"}},
	}
	paper := domain.Paper{ID: "P1", Title: "T", Abstract: "A", Keywords: []string{"a"}}
	first, err := s.RankReviewers(context.Background(), paper, []string{"R1", "R2", "R3"}, reviewers)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := s.RankReviewers(context.Background(), paper, []string{"R1", "R2", "R3"}, reviewers)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, int32(18), topics.calls.Load())
}

func TestReviewerText_CapsPastAbstracts(t *testing.T) {
	r := domain.Reviewer{ExpertiseKeywords: []string{"ml", "nlp"}, PastAbstracts: []string{"one", "two", "three", "four"}}
	assert.Equal(t, "Expertise: ml, nlp\n\nPrevious work:\none\n\ntwo\n\nthree", ReviewerText(r, 3))
	assert.Equal(t, "Expertise: ml", ReviewerText(domain.Reviewer{ExpertiseKeywords: []string{"ml"}}, 3))
}

func TestPaperText(t *testing.T) {
	assert.Equal(t, "Title\n\nAbstract", PaperText(domain.Paper{Title: "Title", Abstract: "Abstract"}))
	assert.Equal(t, "Title\n\nAbstract\n\nKeywords: a, b", PaperText(domain.Paper{Title: "Title", Abstract: "Abstract", Keywords: []string{"a", "b"}}))
}

func TestRationaleFallback(t *testing.T) {
	assert.Equal(t, "Similarity score: 0.42", Rationale(nil, nil, "", 0.42))
	assert.Equal(t, "Matching keywords: a, b, c. Medium expertise match",
		Rationale([]string{"a", "b", "c", "d"}, nil, domain.TierMedium, 0.7))
}
