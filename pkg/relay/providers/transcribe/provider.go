// Package transcribe provides speech-to-text providers.
package transcribe

import (
	"context"
	"strings"
)

// Provider is the interface for speech-to-text services.
type Provider interface {
	// Name returns the provider identifier.
	Name() string

	// Transcribe converts one encoded audio chunk to text. language is the
	// speaker's BCP-47 tag; providers narrow it to whatever granularity
	// their API accepts.
	Transcribe(ctx context.Context, audio []byte, language string) (string, error)
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
