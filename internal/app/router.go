// Package app assembles the HTTP router and dependency readiness checks.
package app

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpserver "github.com/fairyhunter13/confms-ai-service/internal/adapter/httpserver"
	"github.com/fairyhunter13/confms-ai-service/internal/adapter/observability"
	"github.com/fairyhunter13/confms-ai-service/internal/config"
)

// ParseOrigins splits a comma-separated origin list into a slice, trimming spaces.
// If the input is empty, returns ["*"].
func ParseOrigins(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" || s == "*" {
		return []string{"*"}
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

// BuildRouter constructs the HTTP handler with all middlewares and routes.
func BuildRouter(cfg config.Config, srv *httpserver.Server) http.Handler {
	r := chi.NewRouter()
	r.Use(httpserver.Recoverer())
	r.Use(httpserver.RequestID())
	if cfg.HTTPHandlerTimeout > 0 {
		r.Use(httpserver.TimeoutMiddleware(cfg.HTTPHandlerTimeout))
	}
	r.Use(httpserver.TraceMiddleware)
	r.Use(httpserver.AccessLog())
	r.Use(observability.HTTPMetricsMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   ParseOrigins(cfg.CORSAllowOrigins),
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"X-Request-Id", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", srv.ReadyzHandler())
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(httpserver.ServiceTokenGuard(cfg.ServiceTokenHash))
		api.Use(httpserver.AcceptJSON)

		api.Get("/monitoring/health", srv.HealthHandler())

		// Rate limit mutating endpoints
		api.Group(func(wr chi.Router) {
			if cfg.RateLimitPerMin > 0 {
				wr.Use(httprate.LimitByIP(cfg.RateLimitPerMin, time.Minute))
			}
			wr.Route("/authors", func(a chi.Router) {
				a.Post("/check-spelling", srv.CheckSpellingHandler())
				a.Post("/check-grammar", srv.CheckGrammarHandler())
				a.Post("/polish-abstract", srv.PolishAbstractHandler())
				a.Post("/suggest-keywords", srv.SuggestKeywordsHandler())
				a.Post("/apply-polish", srv.ApplyPolishHandler())
			})
			wr.Post("/reviewers/generate-synopsis", srv.GenerateSynopsisHandler())
			wr.Post("/reviewers/extract-keypoints", srv.ExtractKeyPointsHandler())
			wr.Post("/chairs/draft-email", srv.DraftEmailHandler())
			wr.Put("/chairs/approve-email-draft", srv.ApproveEmailDraftHandler())
			wr.Post("/assignment/calculate-similarity", srv.CalculateSimilarityHandler())
			wr.Post("/assignment/suggest-assignments", srv.SuggestAssignmentsHandler())
			wr.Post("/governance/features/enable", srv.EnableFeatureHandler())
			wr.Post("/governance/features/disable", srv.DisableFeatureHandler())
		})

		api.Get("/reviewers/paper-synopsis/{paper_id}", srv.GetSynopsisHandler())
		api.Route("/governance", func(g chi.Router) {
			g.Get("/features", srv.AvailableFeaturesHandler())
			g.Get("/features/{conference_id}", srv.ConferenceFeaturesHandler())
			g.Get("/audit-logs", srv.AuditLogsHandler())
			g.Get("/usage-stats/{conference_id}", srv.UsageStatsHandler())
			g.Get("/usage-stats/{conference_id}/acceptance-rate", srv.AcceptanceRateHandler())
		})
	})

	return httpserver.SecurityHeaders(r)
}
