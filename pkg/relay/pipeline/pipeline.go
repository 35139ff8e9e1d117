// Package pipeline turns one source utterance into a translated, voiced
// result by running three provider fallback chains in sequence.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/linguacast/linguacast/pkg/relay/providers/synthesize"
	"github.com/linguacast/linguacast/pkg/relay/providers/transcribe"
	"github.com/linguacast/linguacast/pkg/relay/providers/translate"
)

// HealthChecker is implemented by providers that can report reachability.
// Providers without it count as healthy once constructed.
type HealthChecker interface {
	Healthy(ctx context.Context) error
}

// TierHealth is one tier's probe result, for diagnostics.
type TierHealth struct {
	Name    string
	Healthy bool
	Err     error
}

// TranscribeChain tries transcription tiers in order. Unlike the other two
// chains it reports exhaustion as an error, because the caller may have no
// fallback text at all.
type TranscribeChain struct {
	tiers   []transcribe.Provider
	timeout time.Duration
	logger  *slog.Logger

	mu       sync.Mutex
	lastGood string
}

func NewTranscribeChain(tiers []transcribe.Provider, timeout time.Duration, logger *slog.Logger) (*TranscribeChain, error) {
	if len(tiers) == 0 {
		return nil, fmt.Errorf("transcription chain must not be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TranscribeChain{tiers: tiers, timeout: timeout, logger: logger}, nil
}

func (c *TranscribeChain) Execute(ctx context.Context, audio []byte, language string) (string, error) {
	var lastErr error
	for _, tier := range c.tiers {
		text, err := c.callTier(ctx, tier, audio, language)
		if err != nil {
			lastErr = err
			c.logger.Warn("transcription tier failed", "tier", tier.Name(), "err", err)
			continue
		}
		c.markGood(tier.Name())
		return text, nil
	}
	return "", fmt.Errorf("transcription chain exhausted: %w", lastErr)
}

func (c *TranscribeChain) callTier(ctx context.Context, tier transcribe.Provider, audio []byte, language string) (string, error) {
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()
	return tier.Transcribe(ctx, audio, language)
}

func (c *TranscribeChain) markGood(name string) {
	c.mu.Lock()
	c.lastGood = name
	c.mu.Unlock()
}

// LastGood names the tier that most recently succeeded. Diagnostics only.
func (c *TranscribeChain) LastGood() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastGood
}

func (c *TranscribeChain) Health(ctx context.Context) []TierHealth {
	tiers := make([]namedTier, len(c.tiers))
	for i, tier := range c.tiers {
		tiers[i] = asNamedTier(tier.Name(), tier)
	}
	return tierHealth(ctx, tiers)
}

// TranslateChain tries translation tiers in order. Exhaustion yields an
// empty string; the orchestrator substitutes the original text so a listener
// always gets something readable.
type TranslateChain struct {
	tiers   []translate.Provider
	timeout time.Duration
	logger  *slog.Logger

	mu       sync.Mutex
	lastGood string
}

func NewTranslateChain(tiers []translate.Provider, timeout time.Duration, logger *slog.Logger) (*TranslateChain, error) {
	if len(tiers) == 0 {
		return nil, fmt.Errorf("translation chain must not be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TranslateChain{tiers: tiers, timeout: timeout, logger: logger}, nil
}

func (c *TranslateChain) Execute(ctx context.Context, text, sourceLang, targetLang string) string {
	for _, tier := range c.tiers {
		out, err := c.callTier(ctx, tier, text, sourceLang, targetLang)
		if err != nil {
			c.logger.Warn("translation tier failed", "tier", tier.Name(), "err", err)
			continue
		}
		if strings.TrimSpace(out) == "" {
			c.logger.Warn("translation tier returned empty text", "tier", tier.Name())
			continue
		}
		c.markGood(tier.Name())
		return out
	}
	return ""
}

func (c *TranslateChain) callTier(ctx context.Context, tier translate.Provider, text, sourceLang, targetLang string) (string, error) {
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()
	return tier.Translate(ctx, text, sourceLang, targetLang)
}

func (c *TranslateChain) markGood(name string) {
	c.mu.Lock()
	c.lastGood = name
	c.mu.Unlock()
}

func (c *TranslateChain) LastGood() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastGood
}

func (c *TranslateChain) Health(ctx context.Context) []TierHealth {
	tiers := make([]namedTier, len(c.tiers))
	for i, tier := range c.tiers {
		tiers[i] = asNamedTier(tier.Name(), tier)
	}
	return tierHealth(ctx, tiers)
}

// SynthChain tries synthesis tiers in order, with an optional preferred tier
// moved to the front. Exhaustion yields nil; text still reaches listeners.
type SynthChain struct {
	tiers   []synthesize.Provider
	timeout time.Duration
	logger  *slog.Logger

	mu       sync.Mutex
	lastGood string
}

func NewSynthChain(tiers []synthesize.Provider, timeout time.Duration, logger *slog.Logger) (*SynthChain, error) {
	if len(tiers) == 0 {
		return nil, fmt.Errorf("synthesis chain must not be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SynthChain{tiers: tiers, timeout: timeout, logger: logger}, nil
}

// Execute voices text. preferTier, when it names a known tier, is tried
// first; the remaining tiers keep their configured order. An unknown
// preference is logged and ignored rather than failing the request.
func (c *SynthChain) Execute(ctx context.Context, text, language, voice, preferTier string) (*synthesize.Synthesis, string) {
	for _, tier := range c.ordered(preferTier) {
		out, err := c.callTier(ctx, tier, text, language, voice)
		if err != nil {
			c.logger.Warn("synthesis tier failed", "tier", tier.Name(), "err", err)
			continue
		}
		if out == nil {
			c.logger.Warn("synthesis tier returned nothing", "tier", tier.Name())
			continue
		}
		c.markGood(tier.Name())
		return out, tier.Name()
	}
	return nil, ""
}

func (c *SynthChain) ordered(preferTier string) []synthesize.Provider {
	preferTier = strings.TrimSpace(preferTier)
	if preferTier == "" {
		return c.tiers
	}
	idx := -1
	for i, tier := range c.tiers {
		if tier.Name() == preferTier {
			idx = i
			break
		}
	}
	if idx < 0 {
		c.logger.Warn("unknown synthesis tier preference ignored", "tier", preferTier)
		return c.tiers
	}
	if idx == 0 {
		return c.tiers
	}
	out := make([]synthesize.Provider, 0, len(c.tiers))
	out = append(out, c.tiers[idx])
	for i, tier := range c.tiers {
		if i != idx {
			out = append(out, tier)
		}
	}
	return out
}

func (c *SynthChain) callTier(ctx context.Context, tier synthesize.Provider, text, language, voice string) (*synthesize.Synthesis, error) {
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()
	return tier.Synthesize(ctx, text, synthesize.Options{Language: language, Voice: voice})
}

func (c *SynthChain) markGood(name string) {
	c.mu.Lock()
	c.lastGood = name
	c.mu.Unlock()
}

func (c *SynthChain) LastGood() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastGood
}

func (c *SynthChain) Health(ctx context.Context) []TierHealth {
	tiers := make([]namedTier, len(c.tiers))
	for i, tier := range c.tiers {
		tiers[i] = asNamedTier(tier.Name(), tier)
	}
	return tierHealth(ctx, tiers)
}

// Tiers lists the chain's tier names in configured order.
func (c *SynthChain) Tiers() []string {
	out := make([]string, len(c.tiers))
	for i, tier := range c.tiers {
		out[i] = tier.Name()
	}
	return out
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

type namedTier struct {
	name  string
	check HealthChecker
}

func asNamedTier(name string, tier any) namedTier {
	nt := namedTier{name: name}
	if hc, ok := tier.(HealthChecker); ok {
		nt.check = hc
	}
	return nt
}

func tierHealth(ctx context.Context, tiers []namedTier) []TierHealth {
	out := make([]TierHealth, 0, len(tiers))
	for _, tier := range tiers {
		h := TierHealth{Name: tier.name, Healthy: true}
		if tier.check != nil {
			if err := tier.check.Healthy(ctx); err != nil {
				h.Healthy = false
				h.Err = err
			}
		}
		out = append(out, h)
	}
	return out
}
