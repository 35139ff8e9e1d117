package cli

import (
	"io"
	"log/slog"
	"strings"

	"github.com/linguacast/linguacast/pkg/relay/config"
	"github.com/linguacast/linguacast/pkg/relay/pipeline"
)

func newLogger(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: parseLevel(level)}))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// buildPipeline assembles the tier chains from the catalog file and the
// configured credentials.
func buildPipeline(cfg config.Config, logger *slog.Logger) (*pipeline.Orchestrator, error) {
	catalog := pipeline.DefaultCatalog()
	if strings.TrimSpace(cfg.CatalogPath) != "" {
		var err error
		catalog, err = pipeline.LoadCatalog(cfg.CatalogPath)
		if err != nil {
			return nil, err
		}
	}

	return pipeline.Build(catalog, pipeline.BuildOptions{
		DeepgramAPIKey:   cfg.DeepgramAPIKey,
		GoogleAPIKey:     cfg.GoogleAPIKey,
		DeepLAPIKey:      cfg.DeepLAPIKey,
		GeminiAPIKey:     cfg.GeminiAPIKey,
		ElevenLabsAPIKey: cfg.ElevenLabsAPIKey,

		TranscribeTimeout: cfg.TranscribeTimeout,
		TranslateTimeout:  cfg.TranslateTimeout,
		SynthesizeTimeout: cfg.SynthesizeTimeout,

		DefaultSynthesisTier: cfg.DefaultSynthesisTier,
		Logger:               logger,
	})
}
