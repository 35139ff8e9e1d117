package synthesize

import (
	"context"
	"strings"
)

// ClientSpeechProvider is the synthesis tier of last resort. It renders no
// audio; instead it hands listeners parameters for their own built-in
// speech engine. It cannot fail, which is what makes it a safe chain
// terminator.
type ClientSpeechProvider struct{}

// NewClientSpeech creates the client-side speech provider.
func NewClientSpeech() *ClientSpeechProvider {
	return &ClientSpeechProvider{}
}

// Name returns the provider identifier.
func (c *ClientSpeechProvider) Name() string {
	return "clientspeech"
}

// Synthesize returns speech parameters for the client engine.
func (c *ClientSpeechProvider) Synthesize(ctx context.Context, text string, opts Options) (*Synthesis, error) {
	lang := strings.TrimSpace(opts.Language)
	if lang == "" {
		lang = "en-US"
	}
	return &Synthesis{
		SpeechParams: &SpeechParams{
			Lang:  lang,
			Voice: strings.TrimSpace(opts.Voice),
			Rate:  1.0,
			Pitch: 1.0,
		},
	}, nil
}
