package httpserver

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fairyhunter13/confms-ai-service/internal/domain"
	"github.com/fairyhunter13/confms-ai-service/internal/usecase"
)

type featureFlagRequest struct {
	ConferenceID string `json:"conference_id" validate:"required,max=100"`
	FeatureName  string `json:"feature_name" validate:"required,max=100"`
	UserID       string `json:"user_id" validate:"max=100"`
}

type featureFlagResponse struct {
	ConferenceID string `json:"conference_id"`
	FeatureName  string `json:"feature_name"`
	Enabled      bool   `json:"enabled"`
	Message      string `json:"message"`
}

// EnableFeatureHandler serves POST /api/v1/governance/features/enable.
func (s *Server) EnableFeatureHandler() http.HandlerFunc { return s.toggleFeature(true) }

// DisableFeatureHandler serves POST /api/v1/governance/features/disable.
func (s *Server) DisableFeatureHandler() http.HandlerFunc { return s.toggleFeature(false) }

func (s *Server) toggleFeature(enabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req featureFlagRequest
		if details, err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err, details)
			return
		}
		set, verb := s.Flags.Disable, "disabled"
		if enabled {
			set, verb = s.Flags.Enable, "enabled"
		}
		if err := set(r.Context(), req.ConferenceID, req.FeatureName); err != nil {
			writeError(w, r, err, nil)
			return
		}
		LoggerFrom(r).Info("feature toggled",
			"conference_id", req.ConferenceID,
			"feature", req.FeatureName,
			"enabled", enabled,
			"user_id", req.UserID)
		writeJSON(w, http.StatusOK, featureFlagResponse{
			ConferenceID: req.ConferenceID,
			FeatureName:  req.FeatureName,
			Enabled:      enabled,
			Message:      fmt.Sprintf("Feature '%s' %s for conference %s", req.FeatureName, verb, req.ConferenceID),
		})
	}
}

// ConferenceFeaturesHandler serves GET /api/v1/governance/features/{conference_id}.
// Features never stored for the conference report false.
func (s *Server) ConferenceFeaturesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conf := chi.URLParam(r, "conference_id")
		if conf == "" {
			writeError(w, r, fmt.Errorf("%w: conference_id is required", domain.ErrInvalidArgument), nil)
			return
		}
		flags, err := s.Flags.List(r.Context(), conf)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		features := make(map[string]bool, len(domain.AvailableFeatures))
		for _, name := range s.Flags.Available() {
			features[name] = false
		}
		for _, f := range flags {
			features[f.Feature] = f.Enabled
		}
		writeJSON(w, http.StatusOK, map[string]any{"conference_id": conf, "features": features})
	}
}

// AvailableFeaturesHandler serves GET /api/v1/governance/features.
func (s *Server) AvailableFeaturesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		names := s.Flags.Available()
		writeJSON(w, http.StatusOK, map[string]any{"features": names, "count": len(names)})
	}
}

type auditLogResponse struct {
	ID            string         `json:"id"`
	Timestamp     time.Time      `json:"timestamp"`
	ConferenceID  string         `json:"conference_id"`
	UserID        string         `json:"user_id"`
	Feature       string         `json:"feature"`
	Action        string         `json:"action"`
	Prompt        string         `json:"prompt"`
	ModelID       string         `json:"model_id"`
	InputHash     string         `json:"input_hash"`
	OutputSummary string         `json:"output_summary"`
	Accepted      *bool          `json:"accepted"`
	Metadata      map[string]any `json:"metadata"`
}

// AuditLogsHandler serves GET /api/v1/governance/audit-logs.
func (s *Server) AuditLogsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		limit, err := queryInt(q.Get("limit"), "limit")
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		offset, err := queryInt(q.Get("offset"), "offset")
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		f := usecase.AuditFilter{
			ConferenceID: q.Get("conference_id"),
			UserID:       q.Get("user_id"),
			Feature:      q.Get("feature"),
			Limit:        limit,
			Offset:       offset,
		}
		entries, err := s.Audit.Query(r.Context(), f)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		logs := make([]auditLogResponse, 0, len(entries))
		for _, e := range entries {
			logs = append(logs, auditLogResponse(e))
		}
		if f.Limit == 0 {
			f.Limit = 100
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"logs":   logs,
			"count":  len(logs),
			"limit":  f.Limit,
			"offset": f.Offset,
		})
	}
}

// UsageStatsHandler serves GET /api/v1/governance/usage-stats/{conference_id}.
func (s *Server) UsageStatsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		start, err := queryTime(q.Get("start_date"), "start_date")
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		end, err := queryTime(q.Get("end_date"), "end_date")
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		stats, err := s.Audit.UsageStats(r.Context(), chi.URLParam(r, "conference_id"), q.Get("feature"), start, end)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		if stats.Features == nil {
			stats.Features = []domain.FeatureUsage{}
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

// AcceptanceRateHandler serves GET /api/v1/governance/usage-stats/{conference_id}/acceptance-rate.
func (s *Server) AcceptanceRateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		days, err := queryInt(r.URL.Query().Get("days"), "days")
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		rate, err := s.Audit.AcceptanceRate(r.Context(), chi.URLParam(r, "conference_id"), r.URL.Query().Get("feature"), days)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, rate)
	}
}

// queryInt parses an optional integer parameter; empty means 0.
func queryInt(v, name string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", domain.ErrInvalidArgument, name)
	}
	return n, nil
}

// queryTime accepts RFC 3339 timestamps or plain dates.
func queryTime(v, name string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", time.DateOnly} {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %s must be an ISO 8601 date", domain.ErrInvalidArgument, name)
}
