package observability

import (
	"io"
	"log/slog"
	"os"

	"github.com/fairyhunter13/confms-ai-service/internal/config"
)

// SetupLogger configures a JSON slog logger tagged with service, version and env.
func SetupLogger(cfg config.Config) *slog.Logger {
	return newLogger(cfg, os.Stdout)
}

func newLogger(cfg config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if cfg.IsDev() || cfg.IsTest() {
		opts.Level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(w, opts)).With(
		slog.String("service", cfg.OTELServiceName),
		slog.String("version", cfg.ServiceVersion),
		slog.String("env", cfg.AppEnv),
	)
}
