package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/confms-ai-service/internal/adapter/ai/stub"
	"github.com/fairyhunter13/confms-ai-service/internal/adapter/cache/rediscache"
	"github.com/fairyhunter13/confms-ai-service/internal/config"
	"github.com/fairyhunter13/confms-ai-service/internal/domain"
	"github.com/fairyhunter13/confms-ai-service/internal/service/similarity"
	"github.com/fairyhunter13/confms-ai-service/internal/usecase"
)

type replyLLM struct {
	mu    sync.Mutex
	reply string
	err   error
}

func (l *replyLLM) ChatJSON(context.Context, domain.ChatRequest) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reply, l.err
}

func (l *replyLLM) Model() string { return "test-model" }

type flagMap map[string]bool

func (f flagMap) IsEnabled(_ context.Context, conf, feature string) bool { return f[conf+"/"+feature] }

type entrySink struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
}

func (s *entrySink) Write(_ context.Context, e domain.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

func (s *entrySink) actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.Action)
	}
	return out
}

type fakeFlagAdmin struct {
	stored  []domain.FeatureFlag
	err     error
	enabled []string
}

func (f *fakeFlagAdmin) Enable(_ context.Context, conf, feature string) error {
	if f.err != nil {
		return f.err
	}
	f.enabled = append(f.enabled, conf+"/"+feature)
	return nil
}

func (f *fakeFlagAdmin) Disable(_ context.Context, conf, feature string) error { return f.err }

func (f *fakeFlagAdmin) List(context.Context, string) ([]domain.FeatureFlag, error) {
	return f.stored, f.err
}

func (f *fakeFlagAdmin) Available() []string { return append([]string(nil), domain.AvailableFeatures...) }

type fakeAuditReader struct {
	entries []domain.AuditEntry
	stats   domain.UsageStats
	rate    usecase.AcceptanceRate
	err     error

	gotFilter usecase.AuditFilter
	gotStart  time.Time
	gotEnd    time.Time
	gotDays   int
}

func (f *fakeAuditReader) Query(_ context.Context, q usecase.AuditFilter) ([]domain.AuditEntry, error) {
	f.gotFilter = q
	return f.entries, f.err
}

func (f *fakeAuditReader) UsageStats(_ context.Context, conf, _ string, start, end time.Time) (domain.UsageStats, error) {
	f.gotStart, f.gotEnd = start, end
	s := f.stats
	s.ConferenceID = conf
	return s, f.err
}

func (f *fakeAuditReader) AcceptanceRate(_ context.Context, conf, feature string, days int) (usecase.AcceptanceRate, error) {
	f.gotDays = days
	r := f.rate
	r.ConferenceID, r.Feature, r.Days = conf, feature, days
	return r, f.err
}

type testEnv struct {
	llm    *replyLLM
	sink   *entrySink
	flags  flagMap
	admin  *fakeFlagAdmin
	audit  *fakeAuditReader
	redis  *miniredis.Miniredis
	server *Server
	router http.Handler
}

// newTestEnv wires real services over a scripted LLM, the stub embedder and miniredis.
// Every feature is enabled for conf-1.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	env := &testEnv{
		llm:   &replyLLM{reply: "[]"},
		sink:  &entrySink{},
		flags: flagMap{},
		admin: &fakeFlagAdmin{},
		audit: &fakeAuditReader{},
		redis: mr,
	}
	for _, f := range domain.AvailableFeatures {
		env.flags["conf-1/"+f] = true
	}
	prompts := config.DefaultPrompts()
	guard := usecase.NewGuard(env.flags, nil)
	auditor := usecase.NewAuditor(env.sink, nil, "test", false)
	assistant := &usecase.Assistant{LLM: env.llm, Prompts: prompts, Guard: guard, Audit: auditor}
	docs := rediscache.NewDocumentStore(rdb)
	scorer := similarity.NewScorer(stub.New(), nil, similarity.DefaultOptions())

	cfg := config.Config{OTELServiceName: "confms-ai-service", ModelName: "test-model"}
	env.server = NewServer(cfg,
		usecase.NewAuthorService(assistant),
		usecase.NewReviewerService(assistant, docs, time.Hour),
		usecase.NewChairService(assistant, docs, time.Hour),
		usecase.NewAssignmentService(scorer, guard, auditor, "stub"),
		env.admin, env.audit)
	env.router = testRoutes(env.server)
	return env
}

func testRoutes(s *Server) http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID())
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(AcceptJSON)
		r.Post("/authors/check-spelling", s.CheckSpellingHandler())
		r.Post("/authors/check-grammar", s.CheckGrammarHandler())
		r.Post("/authors/polish-abstract", s.PolishAbstractHandler())
		r.Post("/authors/suggest-keywords", s.SuggestKeywordsHandler())
		r.Post("/authors/apply-polish", s.ApplyPolishHandler())
		r.Post("/reviewers/generate-synopsis", s.GenerateSynopsisHandler())
		r.Post("/reviewers/extract-keypoints", s.ExtractKeyPointsHandler())
		r.Get("/reviewers/paper-synopsis/{paper_id}", s.GetSynopsisHandler())
		r.Post("/chairs/draft-email", s.DraftEmailHandler())
		r.Put("/chairs/approve-email-draft", s.ApproveEmailDraftHandler())
		r.Post("/assignment/calculate-similarity", s.CalculateSimilarityHandler())
		r.Post("/assignment/suggest-assignments", s.SuggestAssignmentsHandler())
		r.Post("/governance/features/enable", s.EnableFeatureHandler())
		r.Post("/governance/features/disable", s.DisableFeatureHandler())
		r.Get("/governance/features", s.AvailableFeaturesHandler())
		r.Get("/governance/features/{conference_id}", s.ConferenceFeaturesHandler())
		r.Get("/governance/audit-logs", s.AuditLogsHandler())
		r.Get("/governance/usage-stats/{conference_id}", s.UsageStatsHandler())
		r.Get("/governance/usage-stats/{conference_id}/acceptance-rate", s.AcceptanceRateHandler())
	})
	return r
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := decodeBody(t, rec)
	e, ok := body["error"].(map[string]any)
	require.True(t, ok, "missing error envelope: %s", rec.Body.String())
	return e["code"].(string)
}
