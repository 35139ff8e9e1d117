package pipeline

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/linguacast/linguacast/pkg/relay/providers/synthesize"
	"github.com/linguacast/linguacast/pkg/relay/providers/transcribe"
	"github.com/linguacast/linguacast/pkg/relay/providers/translate"
)

// BuildOptions carries the credentials and knobs the catalog file does not
// hold.
type BuildOptions struct {
	DeepgramAPIKey   string
	GoogleAPIKey     string
	DeepLAPIKey      string
	GeminiAPIKey     string
	ElevenLabsAPIKey string

	TranscribeTimeout time.Duration
	TranslateTimeout  time.Duration
	SynthesizeTimeout time.Duration

	DefaultSynthesisTier string

	Logger *slog.Logger
}

// Build wires the catalog's tier lists into a ready orchestrator. An
// unknown tier name anywhere in the catalog, or a default synthesis tier
// the catalog does not list, fails construction.
func Build(catalog Catalog, opts BuildOptions) (*Orchestrator, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	transcribers := make([]transcribe.Provider, 0, len(catalog.Transcription.Tiers))
	for _, name := range catalog.Transcription.Tiers {
		tier, err := buildTranscriber(name, catalog.Transcription.Tier(name), opts)
		if err != nil {
			return nil, err
		}
		transcribers = append(transcribers, tier)
	}

	translators := make([]translate.Provider, 0, len(catalog.Translation.Tiers))
	for _, name := range catalog.Translation.Tiers {
		tier, err := buildTranslator(name, catalog.Translation.Tier(name), opts)
		if err != nil {
			return nil, err
		}
		translators = append(translators, tier)
	}

	synthesizers := make([]synthesize.Provider, 0, len(catalog.Synthesis.Tiers))
	for _, name := range catalog.Synthesis.Tiers {
		tier, err := buildSynthesizer(name, catalog.Synthesis.Tier(name), opts)
		if err != nil {
			return nil, err
		}
		synthesizers = append(synthesizers, tier)
	}

	defaultTier := strings.TrimSpace(opts.DefaultSynthesisTier)
	if !containsTier(catalog.Synthesis.Tiers, defaultTier) {
		return nil, fmt.Errorf("default synthesis tier %q is not in the catalog", defaultTier)
	}

	transcribeChain, err := NewTranscribeChain(transcribers, opts.TranscribeTimeout, logger)
	if err != nil {
		return nil, err
	}
	translateChain, err := NewTranslateChain(translators, opts.TranslateTimeout, logger)
	if err != nil {
		return nil, err
	}
	synthChain, err := NewSynthChain(synthesizers, opts.SynthesizeTimeout, logger)
	if err != nil {
		return nil, err
	}
	return NewOrchestrator(transcribeChain, translateChain, synthChain, defaultTier, logger)
}

func buildTranscriber(name string, settings TierSettings, opts BuildOptions) (transcribe.Provider, error) {
	switch name {
	case TierDeepgram:
		p := transcribe.NewDeepgram(opts.DeepgramAPIKey, settings.Model)
		if settings.Endpoint != "" {
			p.WithBaseURL(settings.Endpoint)
		}
		return p, nil
	case TierGSpeech:
		p := transcribe.NewGoogle(opts.GoogleAPIKey)
		if settings.Endpoint != "" {
			p.WithBaseURL(settings.Endpoint)
		}
		return p, nil
	}
	return nil, fmt.Errorf("unknown transcription tier %q", name)
}

func buildTranslator(name string, settings TierSettings, opts BuildOptions) (translate.Provider, error) {
	switch name {
	case TierGTranslate:
		p := translate.NewGoogle(opts.GoogleAPIKey)
		if settings.Endpoint != "" {
			p.WithBaseURL(settings.Endpoint)
		}
		return p, nil
	case TierDeepL:
		p := translate.NewDeepL(opts.DeepLAPIKey)
		if settings.Endpoint != "" {
			p.WithBaseURL(settings.Endpoint)
		}
		return p, nil
	case TierGemini:
		p := translate.NewGemini(opts.GeminiAPIKey, settings.Model)
		if settings.Endpoint != "" {
			p.WithBaseURL(settings.Endpoint)
		}
		return p, nil
	}
	return nil, fmt.Errorf("unknown translation tier %q", name)
}

func buildSynthesizer(name string, settings TierSettings, opts BuildOptions) (synthesize.Provider, error) {
	switch name {
	case TierElevenLabs:
		p := synthesize.NewElevenLabs(opts.ElevenLabsAPIKey, settings.Model, lowerKeys(settings.Voices))
		if settings.Endpoint != "" {
			p.WithBaseURL(settings.Endpoint)
		}
		return p, nil
	case TierPolly:
		return synthesize.NewPolly(settings.Region, settings.Engine, lowerKeys(settings.Voices)), nil
	case TierClientSpeech:
		return synthesize.NewClientSpeech(), nil
	}
	return nil, fmt.Errorf("unknown synthesis tier %q", name)
}

func containsTier(tiers []string, name string) bool {
	for _, tier := range tiers {
		if tier == name {
			return true
		}
	}
	return false
}

func lowerKeys(voices map[string]string) map[string]string {
	if len(voices) == 0 {
		return nil
	}
	out := make(map[string]string, len(voices))
	for k, v := range voices {
		out[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return out
}
