// Package synthesize provides text-to-speech providers.
package synthesize

import (
	"context"
	"strings"
)

// Options configures one synthesis call.
type Options struct {
	Language string // BCP-47 tag of the text being voiced
	Voice    string // provider-specific voice override
}

// SpeechParams drives a listener's built-in speech engine when no server
// audio is produced.
type SpeechParams struct {
	Lang  string
	Voice string
	Rate  float64
	Pitch float64
}

// Synthesis is one provider's output: server-rendered audio, or parameters
// for the client's own engine, never both.
type Synthesis struct {
	Audio        []byte
	Format       string
	SpeechParams *SpeechParams
}

// Provider is the interface for text-to-speech services.
type Provider interface {
	// Name returns the provider identifier.
	Name() string

	// Synthesize voices text. A result with nil Audio and non-nil
	// SpeechParams delegates playback to the client.
	Synthesize(ctx context.Context, text string, opts Options) (*Synthesis, error)
}

// primarySubtag reduces a BCP-47 tag to its language subtag ("es-ES" to
// "es").
func primarySubtag(tag string) string {
	tag = strings.TrimSpace(strings.ToLower(tag))
	if i := strings.IndexAny(tag, "-_"); i >= 0 {
		tag = tag[:i]
	}
	return tag
}

// lookupVoice resolves a configured voice for a tag, trying the full tag
// before its primary subtag. Keys are lowercase.
func lookupVoice(voices map[string]string, language string) string {
	if len(voices) == 0 {
		return ""
	}
	tag := strings.ToLower(strings.TrimSpace(language))
	if v, ok := voices[tag]; ok {
		return v
	}
	if v, ok := voices[primarySubtag(tag)]; ok {
		return v
	}
	return ""
}
