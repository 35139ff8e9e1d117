// Package store keeps recent translation history per session.
package store

import (
	"context"
	"time"
)

// Entry is one translation as delivered to one recipient.
type Entry struct {
	Session        string
	Recipient      string
	SourceLanguage string
	TargetLanguage string
	OriginalText   string
	TranslatedText string
	SynthesisTier  string
	LatencyMS      int64
	DeliveredAt    time.Time
}

// Store manages translation history. Writes happen on the delivery path,
// so implementations must be cheap and must never block on IO.
type Store interface {
	// Append records one delivered translation.
	Append(ctx context.Context, entry Entry) error
	// Recent returns up to limit entries for a session, newest first.
	Recent(ctx context.Context, session string, limit int) ([]Entry, error)
	// PurgeSession drops a session's history and reports how many entries
	// went with it.
	PurgeSession(ctx context.Context, session string) (int, error)
}
