package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpserver "github.com/fairyhunter13/confms-ai-service/internal/adapter/httpserver"
	"github.com/fairyhunter13/confms-ai-service/internal/config"
	"github.com/fairyhunter13/confms-ai-service/internal/domain"
	"github.com/fairyhunter13/confms-ai-service/internal/usecase"
)

func TestParseOrigins(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"", []string{"*"}},
		{"*", []string{"*"}},
		{"https://a.com, https://b.com", []string{"https://a.com", "https://b.com"}},
		{"  ,  ", []string{"*"}},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, ParseOrigins(c.in), c.in)
	}
}

type catalogue struct{}

func (catalogue) Enable(context.Context, string, string) error { return nil }
func (catalogue) Disable(context.Context, string, string) error { return nil }
func (catalogue) List(context.Context, string) ([]domain.FeatureFlag, error) {
	return nil, nil
}
func (catalogue) Available() []string { return domain.AvailableFeatures }

func newRouter(t *testing.T, cfg config.Config) http.Handler {
	t.Helper()
	srv := httpserver.NewServer(cfg, usecase.AuthorService{}, usecase.ReviewerService{}, usecase.ChairService{},
		usecase.AssignmentService{}, catalogue{}, nil,
		httpserver.ReadinessCheck{Name: "db", Check: func(context.Context) error { return nil }})
	return BuildRouter(cfg, srv)
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestBuildRouter_Monitoring(t *testing.T) {
	h := newRouter(t, config.Config{})

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/monitoring/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
}

func TestBuildRouter_ServiceToken(t *testing.T) {
	hash, err := httpserver.HashToken("backend-token", httpserver.Argon2Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLen: 8, KeyLen: 16})
	require.NoError(t, err)
	h := newRouter(t, config.Config{ServiceTokenHash: hash})

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/governance/features", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/governance/features", nil)
	req.Header.Set(httpserver.ServiceTokenHeader, "backend-token")
	rec = serve(h, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// liveness stays open
	rec = serve(h, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBuildRouter_RejectsNonJSONAccept(t *testing.T) {
	h := newRouter(t, config.Config{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/governance/features", nil)
	req.Header.Set("Accept", "text/html")
	assert.Equal(t, http.StatusNotAcceptable, serve(h, req).Code)
}

func TestBuildRouter_CORSPreflight(t *testing.T) {
	h := newRouter(t, config.Config{CORSAllowOrigins: "https://confms.example"})
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/chairs/approve-email-draft", nil)
	req.Header.Set("Origin", "https://confms.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	rec := serve(h, req)
	assert.Equal(t, "https://confms.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPut)
}

func TestBuildRouter_RateLimitsMutatingRoutes(t *testing.T) {
	h := newRouter(t, config.Config{RateLimitPerMin: 1})
	post := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/governance/features/enable", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		return serve(h, req).Code
	}
	assert.Equal(t, http.StatusBadRequest, post(), "empty body")
	assert.Equal(t, http.StatusTooManyRequests, post())

	// reads are not limited
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/governance/features", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		assert.Equal(t, http.StatusOK, serve(h, req).Code)
	}
}
