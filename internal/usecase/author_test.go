package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/confms-ai-service/internal/domain"
)

func TestCheckSpelling(t *testing.T) {
	h := newHarness(t, "```json\n[{\"word\":\"teh\",\"position\":0,\"suggestions\":[\"the\"],\"context\":\"teh cat\"}]\n```")
	svc := NewAuthorService(h.a)

	out, err := svc.CheckSpelling(context.Background(), TextCheckInput{Caller: testCaller, Text: "teh cat"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "teh", out[0].Word)
	assert.Equal(t, []string{"the"}, out[0].Suggestions)

	require.Len(t, h.llm.calls, 1)
	assert.InDelta(t, 0.1, h.llm.calls[0].Temperature, 1e-9)
	assert.Contains(t, h.llm.calls[0].User, "teh cat")

	e := h.sink.last(t)
	assert.Equal(t, domain.FeatureGrammarCheck, e.Feature)
	assert.Equal(t, "check_spelling", e.Action)
	assert.Equal(t, "test-model", e.ModelID)
	assert.Nil(t, e.Accepted)
	assert.Equal(t, 1, e.Metadata["errors_found"])
}

func TestCheckGrammar_UnparseableReplyIsEmptyList(t *testing.T) {
	h := newHarness(t, "sorry, I cannot help")
	out, err := NewAuthorService(h.a).CheckGrammar(context.Background(), TextCheckInput{Caller: testCaller, Text: "He go home."})
	require.NoError(t, err)
	assert.NotNil(t, out)
	assert.Empty(t, out)
	assert.Equal(t, "check_grammar", h.sink.last(t).Action)
}

func TestCheckSpelling_Validation(t *testing.T) {
	h := newHarness(t, "[]")
	svc := NewAuthorService(h.a)
	ctx := context.Background()

	cases := map[string]TextCheckInput{
		"blank text":    {Caller: testCaller, Text: "  "},
		"too long":      {Caller: testCaller, Text: strings.Repeat("a", maxCheckTextRunes+1)},
		"bad language":  {Caller: testCaller, Text: "ok", Language: "fr"},
		"no conference": {Caller: Caller{UserID: "u"}, Text: "ok"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.CheckSpelling(ctx, in)
			assert.ErrorIs(t, err, domain.ErrInvalidArgument)
		})
	}
	assert.Empty(t, h.llm.calls)
}

func TestAuthorService_FeatureDisabled(t *testing.T) {
	h := newHarness(t, "[]")
	h.flags["conf-1/"+domain.FeatureGrammarCheck] = false

	_, err := NewAuthorService(h.a).CheckGrammar(context.Background(), TextCheckInput{Caller: testCaller, Text: "text"})
	assert.ErrorIs(t, err, domain.ErrFeatureDisabled)
	assert.Empty(t, h.llm.calls)
	assert.Empty(t, h.sink.entries)
}

func TestAuthorService_RateLimited(t *testing.T) {
	h := newHarness(t, "[]")
	h.a.Guard.Quota = quotaFunc(func(context.Context, string) error {
		return &domain.RateLimitError{RetryAfter: 30 * time.Second}
	})
	_, err := NewAuthorService(h.a).CheckSpelling(context.Background(), TextCheckInput{Caller: testCaller, Text: "text"})
	assert.ErrorIs(t, err, domain.ErrRateLimited)
	var rl *domain.RateLimitError
	assert.True(t, errors.As(err, &rl))
	assert.Empty(t, h.llm.calls)
}

func TestAuthorService_LLMErrorPropagates(t *testing.T) {
	h := newHarness(t)
	h.llm.err = domain.ErrUpstreamTimeout
	_, err := NewAuthorService(h.a).CheckSpelling(context.Background(), TextCheckInput{Caller: testCaller, Text: "text"})
	assert.ErrorIs(t, err, domain.ErrUpstreamTimeout)
	assert.Empty(t, h.sink.entries)
}

func TestPolishAbstract(t *testing.T) {
	h := newHarness(t, `{"polished":"We propose X.","changes":[{"change_type":"clarity","before":"we propose","after":"We propose","position":0,"explanation":"capitalised"}],"rationale":"clearer","confidence_score":1.4}`)
	out, err := NewAuthorService(h.a).PolishAbstract(context.Background(), PolishInput{
		Caller: testCaller, PaperID: "p1", Abstract: "we propose X.", PreserveMeaning: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "we propose X.", out.Original)
	assert.Equal(t, "We propose X.", out.Polished)
	assert.Len(t, out.Changes, 1)
	assert.Equal(t, 1.0, out.ConfidenceScore)
	assert.InDelta(t, 0.3, h.llm.calls[0].Temperature, 1e-9)

	e := h.sink.last(t)
	assert.Equal(t, "polish_abstract", e.Action)
	assert.Nil(t, e.Accepted)
}

func TestPolishAbstract_ParseFailureReturnsOriginal(t *testing.T) {
	h := newHarness(t, "not json")
	out, err := NewAuthorService(h.a).PolishAbstract(context.Background(), PolishInput{Caller: testCaller, Abstract: "Original text."})
	require.NoError(t, err)
	assert.Equal(t, "Original text.", out.Polished)
	assert.Equal(t, PolishFallbackRationale, out.Rationale)
	assert.Zero(t, out.ConfidenceScore)
	assert.NotNil(t, out.Changes)
}

func TestPolishAbstract_TooLong(t *testing.T) {
	h := newHarness(t)
	_, err := NewAuthorService(h.a).PolishAbstract(context.Background(), PolishInput{
		Caller: testCaller, Abstract: strings.Repeat("x", maxAbstractRunes+1),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestSuggestKeywords(t *testing.T) {
	reply := `[
		{"keyword":"graph neural networks","score":0.8,"reason":"core","category":"method"},
		{"keyword":"Graph Neural Networks","score":0.9,"reason":"dup","category":"method"},
		{"keyword":"x","score":0.99,"reason":"too short","category":"domain"},
		{"keyword":"molecules","score":0.7,"reason":"domain","category":"domain"},
		{"keyword":"benchmarks","score":0.75,"reason":"eval","category":"application"}
	]`
	h := newHarness(t, reply)
	out, err := NewAuthorService(h.a).SuggestKeywords(context.Background(), KeywordInput{
		Caller:      testCaller,
		Title:       "Graph Neural Networks for Molecules",
		Abstract:    "We apply graph neural networks to molecules. Molecules are graphs. Molecules matter.",
		MaxKeywords: 2,
	})
	require.NoError(t, err)
	require.Len(t, out, 2)
	// molecules: 0.7 + 0.1 (title) + 0.05*2 (abstract repeats) = 0.9
	assert.Equal(t, "graph neural networks", out[0].Keyword)
	assert.InDelta(t, 0.9, out[0].Score, 1e-9)
	assert.Equal(t, "molecules", out[1].Keyword)
	assert.InDelta(t, 0.9, out[1].Score, 1e-9)
	assert.InDelta(t, 0.2, h.llm.calls[0].Temperature, 1e-9)
	assert.Equal(t, 2, h.sink.last(t).Metadata["keywords_count"])
}

func TestSuggestKeywords_Validation(t *testing.T) {
	h := newHarness(t, "[]")
	svc := NewAuthorService(h.a)
	ctx := context.Background()

	_, err := svc.SuggestKeywords(ctx, KeywordInput{Caller: testCaller})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	_, err = svc.SuggestKeywords(ctx, KeywordInput{Caller: testCaller, Title: "t", MaxKeywords: 11})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	_, err = svc.SuggestKeywords(ctx, KeywordInput{Caller: testCaller, Title: strings.Repeat("t", maxTitleRunes+1)})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	out, err := svc.SuggestKeywords(ctx, KeywordInput{Caller: testCaller, Title: "Only a title"})
	require.NoError(t, err)
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

func TestRankKeywords(t *testing.T) {
	in := []domain.KeywordSuggestion{
		{Keyword: " deep learning ", Score: 0.95},
		{Keyword: "DEEP LEARNING", Score: 0.5},
		{Keyword: strings.Repeat("k", 51), Score: 0.9},
		{Keyword: "vision", Score: 0.6},
		{Keyword: "robots", Score: 0.6},
	}
	out := RankKeywords(in, "Deep learning for robots", "vision vision vision")
	require.Len(t, out, 3)
	assert.Equal(t, "deep learning", out[0].Keyword)
	assert.Equal(t, 1.0, out[0].Score)
	// equal scores keep model order
	assert.Equal(t, "vision", out[1].Keyword)
	assert.InDelta(t, 0.7, out[1].Score, 1e-9)
	assert.Equal(t, "robots", out[2].Keyword)
	assert.InDelta(t, 0.7, out[2].Score, 1e-9)
}

func TestApplyPolish(t *testing.T) {
	h := newHarness(t)
	svc := NewAuthorService(h.a)
	ctx := context.Background()

	res, err := svc.ApplyPolish(ctx, ApplyPolishInput{Caller: testCaller, PaperID: "p1", PolishedAbstract: "new", UserConfirmed: true})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, res.AuditLogged)
	e := h.sink.last(t)
	assert.Equal(t, "apply_polish", e.Action)
	assert.Equal(t, "system", e.ModelID)
	require.NotNil(t, e.Accepted)
	assert.True(t, *e.Accepted)

	res, err = svc.ApplyPolish(ctx, ApplyPolishInput{Caller: testCaller, PaperID: "p1", UserConfirmed: false})
	require.NoError(t, err)
	assert.True(t, res.Success)
	require.NotNil(t, h.sink.last(t).Accepted)
	assert.False(t, *h.sink.last(t).Accepted)
	assert.Empty(t, h.llm.calls)
}

func TestApplyPolish_AuditFailureStillSucceeds(t *testing.T) {
	h := newHarness(t)
	h.sink.err = errors.New("db down")
	res, err := NewAuthorService(h.a).ApplyPolish(context.Background(), ApplyPolishInput{Caller: testCaller, PaperID: "p1", UserConfirmed: true})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.False(t, res.AuditLogged)
}

func TestApplyPolish_IgnoresQuota(t *testing.T) {
	h := newHarness(t)
	h.a.Guard.Quota = quotaFunc(func(context.Context, string) error { return domain.ErrRateLimited })
	_, err := NewAuthorService(h.a).ApplyPolish(context.Background(), ApplyPolishInput{Caller: testCaller, PaperID: "p1"})
	assert.NoError(t, err)
}
