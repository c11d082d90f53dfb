package observability

import (
	"context"
	"log/slog"
)

type loggerContextKey struct{}

type scopeContextKey struct{}

// Scope identifies who a unit of work runs for. The HTTP layer sets RequestID;
// the feature services add the conference and feature once a call is admitted.
type Scope struct {
	RequestID    string
	ConferenceID string
	Feature      string
}

// ContextWithLogger attaches a non-nil logger to the context.
func ContextWithLogger(ctx context.Context, lg *slog.Logger) context.Context {
	if ctx == nil || lg == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerContextKey{}, lg)
}

// LoggerFromContext returns the context logger, or slog.Default when none is set.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return slog.Default()
	}
	if lg, ok := ctx.Value(loggerContextKey{}).(*slog.Logger); ok && lg != nil {
		return lg
	}
	return slog.Default()
}

// ScopeFromContext returns the scope carried by ctx; the zero Scope when there is none.
func ScopeFromContext(ctx context.Context) Scope {
	if ctx == nil {
		return Scope{}
	}
	s, _ := ctx.Value(scopeContextKey{}).(Scope)
	return s
}

// ContextWithRequestID records the originating request id. The logger is not
// touched; the request middleware already adds request_id to it.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil || requestID == "" {
		return ctx
	}
	s := ScopeFromContext(ctx)
	s.RequestID = requestID
	return context.WithValue(ctx, scopeContextKey{}, s)
}

// RequestIDFromContext returns the request id, or "".
func RequestIDFromContext(ctx context.Context) string {
	return ScopeFromContext(ctx).RequestID
}

// WithConference scopes ctx to a conference and feature and adds conference_id
// and feature to the context logger. Empty or unchanged values are left alone,
// so repeated calls with the same arguments return ctx as is.
func WithConference(ctx context.Context, conferenceID, feature string) context.Context {
	if ctx == nil {
		return ctx
	}
	s := ScopeFromContext(ctx)
	var attrs []any
	if conferenceID != "" && conferenceID != s.ConferenceID {
		s.ConferenceID = conferenceID
		attrs = append(attrs, slog.String("conference_id", conferenceID))
	}
	if feature != "" && feature != s.Feature {
		s.Feature = feature
		attrs = append(attrs, slog.String("feature", feature))
	}
	if len(attrs) == 0 {
		return ctx
	}
	ctx = context.WithValue(ctx, scopeContextKey{}, s)
	return ContextWithLogger(ctx, LoggerFromContext(ctx).With(attrs...))
}
