// Package translate provides text translation providers.
package translate

import (
	"context"
	"strings"
)

// Provider is the interface for translation services.
type Provider interface {
	// Name returns the provider identifier.
	Name() string

	// Translate converts text from sourceLang to targetLang. Both are
	// BCP-47 tags; providers narrow them to whatever their API accepts.
	// An empty sourceLang asks the provider to detect the language.
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
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
