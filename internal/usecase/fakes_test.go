package usecase

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/fairyhunter13/confms-ai-service/internal/config"
	"github.com/fairyhunter13/confms-ai-service/internal/domain"
)

type fakeLLM struct {
	mu      sync.Mutex
	replies []string
	err     error
	calls   []domain.ChatRequest
}

func (f *fakeLLM) ChatJSON(_ context.Context, req domain.ChatRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if f.err != nil {
		return "", f.err
	}
	if len(f.replies) == 0 {
		return "", nil
	}
	r := f.replies[0]
	if len(f.replies) > 1 {
		f.replies = f.replies[1:]
	}
	return r, nil
}

func (f *fakeLLM) Model() string { return "test-model" }

type flagSet map[string]bool

func (f flagSet) IsEnabled(_ context.Context, conf, feature string) bool {
	return f[conf+"/"+feature]
}

func allFlags(conf string) flagSet {
	f := flagSet{}
	for _, feat := range domain.AvailableFeatures {
		f[conf+"/"+feat] = true
	}
	return f
}

type quotaFunc func(ctx context.Context, conf string) error

func (q quotaFunc) Check(ctx context.Context, conf string) error { return q(ctx, conf) }

type captureSink struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
	err     error
}

func (s *captureSink) Write(_ context.Context, e domain.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, e)
	return nil
}

func (s *captureSink) last(t *testing.T) domain.AuditEntry {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.entries) == 0 {
		t.Fatal("no audit entries recorded")
	}
	return s.entries[len(s.entries)-1]
}

type memDocs struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]int64
	err  error
}

func newMemDocs() *memDocs {
	return &memDocs{data: map[string][]byte{}, ttls: map[string]int64{}}
}

func (m *memDocs) PutJSON(_ context.Context, key string, v any, ttlSeconds int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.data[key] = b
	m.ttls[key] = ttlSeconds
	return nil
}

func (m *memDocs) GetJSON(_ context.Context, key string, dst any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.data[key]
	if !ok {
		return domain.ErrNotFound
	}
	return json.Unmarshal(b, dst)
}

type harness struct {
	llm   *fakeLLM
	sink  *captureSink
	flags flagSet
	a     *Assistant
}

func newHarness(t *testing.T, replies ...string) *harness {
	t.Helper()
	h := &harness{
		llm:   &fakeLLM{replies: replies},
		sink:  &captureSink{},
		flags: allFlags("conf-1"),
	}
	audit := NewAuditor(h.sink, nil, "test", false)
	audit.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	h.a = &Assistant{
		LLM:     h.llm,
		Prompts: config.DefaultPrompts(),
		Guard:   NewGuard(h.flags, nil),
		Audit:   audit,
	}
	return h
}

var testCaller = Caller{ConferenceID: "conf-1", UserID: "user-1"}
