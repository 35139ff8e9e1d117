package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/linguacast/linguacast/pkg/relay/providers/synthesize"
)

// Request is one orchestration: either Text (already transcribed) or Audio.
type Request struct {
	Audio          []byte
	Text           string
	SourceLanguage string
	TargetLanguage string
	// TierPreference is the resolved synthesis preference for this run:
	// explicit request first, then recipient setting. Empty falls back to
	// the process default.
	TierPreference string
	Voice          string
}

// Timings are the measured per-stage durations of one run, in milliseconds.
// Measured around each stage call, never estimated.
type Timings struct {
	TranscriptionMS int64
	TranslationMS   int64
	SynthesisMS     int64
}

// Result is the terminal value of one run. Empty text fields and nil Audio
// mean the owning stage exhausted its chain; that is a valid outcome, not an
// error.
type Result struct {
	OriginalText   string
	TranslatedText string
	Audio          []byte
	AudioFormat    string
	SpeechParams   *synthesize.SpeechParams
	SynthesisTier  string
	Timings        Timings
}

// Empty reports whether the run produced nothing deliverable.
func (r Result) Empty() bool {
	return strings.TrimSpace(r.TranslatedText) == ""
}

// Orchestrator composes the three chains into one request/response
// operation.
type Orchestrator struct {
	transcribe  *TranscribeChain
	translate   *TranslateChain
	synthesize  *SynthChain
	defaultTier string
	logger      *slog.Logger
}

func NewOrchestrator(transcribe *TranscribeChain, translate *TranslateChain, synthesize *SynthChain, defaultTier string, logger *slog.Logger) (*Orchestrator, error) {
	if transcribe == nil || translate == nil || synthesize == nil {
		return nil, fmt.Errorf("orchestrator requires all three chains")
	}
	if strings.TrimSpace(defaultTier) == "" {
		return nil, fmt.Errorf("orchestrator requires a default synthesis tier")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		transcribe:  transcribe,
		translate:   translate,
		synthesize:  synthesize,
		defaultTier: defaultTier,
		logger:      logger,
	}, nil
}

// Run executes transcription → translation → synthesis for one language
// pair. Provider failures never escape: each stage degrades to its
// documented fallback (empty result / original text / no audio). The only
// returned error is a malformed request, which callers treat as fatal.
func (o *Orchestrator) Run(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.TargetLanguage) == "" {
		return Result{}, fmt.Errorf("pipeline: target language is required")
	}
	original := strings.TrimSpace(req.Text)
	if original == "" && len(req.Audio) == 0 {
		return Result{}, fmt.Errorf("pipeline: request carries neither text nor audio")
	}

	var result Result

	if original == "" {
		start := time.Now()
		text, err := o.transcribe.Execute(ctx, req.Audio, req.SourceLanguage)
		result.Timings.TranscriptionMS = time.Since(start).Milliseconds()
		if err != nil {
			o.logger.Warn("transcription unavailable, dropping utterance", "err", err)
			return result, nil
		}
		original = strings.TrimSpace(text)
		if original == "" {
			// Nothing was said; skip the rest of the pipeline.
			return result, nil
		}
	}
	result.OriginalText = original

	if SameLanguage(req.SourceLanguage, req.TargetLanguage) {
		result.TranslatedText = original
	} else {
		start := time.Now()
		translated := o.translate.Execute(ctx, original, req.SourceLanguage, req.TargetLanguage)
		result.Timings.TranslationMS = time.Since(start).Milliseconds()
		if strings.TrimSpace(translated) == "" {
			// Untranslated beats unreadable: fall back to the source text.
			translated = original
		}
		result.TranslatedText = translated
	}

	preference := strings.TrimSpace(req.TierPreference)
	if preference == "" {
		preference = o.defaultTier
	}
	start := time.Now()
	synth, tier := o.synthesize.Execute(ctx, result.TranslatedText, req.TargetLanguage, req.Voice, preference)
	result.Timings.SynthesisMS = time.Since(start).Milliseconds()
	if synth != nil {
		result.Audio = synth.Audio
		result.AudioFormat = synth.Format
		result.SpeechParams = synth.SpeechParams
		result.SynthesisTier = tier
	}

	return result, nil
}

// Transcribe runs only the transcription chain. Fan-out callers use it to
// transcribe a speaker chunk once, then feed the text into per-language
// runs.
func (o *Orchestrator) Transcribe(ctx context.Context, audio []byte, language string) (string, error) {
	return o.transcribe.Execute(ctx, audio, language)
}

// Synthesize runs only the synthesis chain. An empty preferTier falls back
// to the process default. Returns nil and an empty tier name when the chain
// is exhausted.
func (o *Orchestrator) Synthesize(ctx context.Context, text, language, voice, preferTier string) (*synthesize.Synthesis, string) {
	if strings.TrimSpace(preferTier) == "" {
		preferTier = o.defaultTier
	}
	return o.synthesize.Execute(ctx, text, language, voice, preferTier)
}

// Health reports per-stage reachability plus the overall AND, for external
// monitoring. A stage is reachable when at least one of its tiers is.
type Health struct {
	Transcription bool `json:"transcription"`
	Translation   bool `json:"translation"`
	Synthesis     bool `json:"synthesis"`
	Healthy       bool `json:"healthy"`
}

func (o *Orchestrator) Health(ctx context.Context) Health {
	h := Health{
		Transcription: anyHealthy(o.transcribe.Health(ctx)),
		Translation:   anyHealthy(o.translate.Health(ctx)),
		Synthesis:     anyHealthy(o.synthesize.Health(ctx)),
	}
	h.Healthy = h.Transcription && h.Translation && h.Synthesis
	return h
}

// StageReport carries per-tier detail for the check command.
type StageReport struct {
	Transcription []TierHealth
	Translation   []TierHealth
	Synthesis     []TierHealth
}

func (o *Orchestrator) Report(ctx context.Context) StageReport {
	return StageReport{
		Transcription: o.transcribe.Health(ctx),
		Translation:   o.translate.Health(ctx),
		Synthesis:     o.synthesize.Health(ctx),
	}
}

// Healthy reports whether every stage has at least one reachable tier.
func (r StageReport) Healthy() bool {
	return anyHealthy(r.Transcription) && anyHealthy(r.Translation) && anyHealthy(r.Synthesis)
}

func anyHealthy(tiers []TierHealth) bool {
	for _, tier := range tiers {
		if tier.Healthy {
			return true
		}
	}
	return false
}

// SameLanguage compares two BCP-47 tags at primary-subtag granularity, so
// "es" and "es-ES" count as one language and skip translation.
func SameLanguage(a, b string) bool {
	return baseLang(a) != "" && baseLang(a) == baseLang(b)
}

func baseLang(tag string) string {
	tag = strings.TrimSpace(strings.ToLower(tag))
	if i := strings.IndexAny(tag, "-_"); i >= 0 {
		tag = tag[:i]
	}
	return tag
}
