// Package httpserver contains the HTTP handlers and middleware of the AI service.
//
// Handlers decode and validate JSON requests, delegate to the usecase
// services and translate domain errors into the JSON error envelope.
package httpserver

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/fairyhunter13/confms-ai-service/internal/domain"
)

type errorEnvelope struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps an error to its HTTP status and envelope code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest, "INVALID_ARGUMENT"
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "UNAUTHORIZED"
	case errors.Is(err, domain.ErrFeatureDisabled):
		return http.StatusForbidden, "FEATURE_DISABLED"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "CONFLICT"
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, "RATE_LIMITED"
	case errors.Is(err, domain.ErrEmbeddingUnavailable):
		return http.StatusServiceUnavailable, "EMBEDDING_UNAVAILABLE"
	case errors.Is(err, domain.ErrUpstreamTimeout):
		return http.StatusServiceUnavailable, "UPSTREAM_TIMEOUT"
	case errors.Is(err, domain.ErrUpstreamRateLimit):
		return http.StatusServiceUnavailable, "UPSTREAM_RATE_LIMIT"
	case errors.Is(err, domain.ErrUpstreamSchema):
		return http.StatusServiceUnavailable, "UPSTREAM_SCHEMA"
	}
	return http.StatusInternalServerError, "INTERNAL"
}

func writeError(w http.ResponseWriter, r *http.Request, err error, details any) {
	code, codeStr := statusFor(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		LoggerFrom(r).Error("request failed", "path", r.URL.Path, "error", err)
		msg = "internal error"
	}
	var rl *domain.RateLimitError
	if errors.As(err, &rl) && rl.RetryAfter > 0 {
		secs := int(math.Ceil(rl.RetryAfter.Seconds()))
		w.Header().Set("Retry-After", strconv.Itoa(secs))
		if details == nil {
			details = map[string]any{"retry_after_seconds": secs}
		}
	}
	writeJSON(w, code, errorEnvelope{Error: apiError{Code: codeStr, Message: msg, Details: details}})
}
