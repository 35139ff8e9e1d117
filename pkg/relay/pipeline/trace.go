package pipeline

import (
	"sync"
	"time"
)

// Trace accumulates per-stage latency for one source utterance across its
// whole fan-out. Translation and synthesis keep the maximum observed across
// concurrent language runs; parallel runs never sum into wall-clock time.
type Trace struct {
	start time.Time

	mu            sync.Mutex
	preparationMS int64
	translationMS int64
	synthesisMS   int64
}

// NewTrace starts the clock. Callers create it when the source frame
// arrives, before any work happens.
func NewTrace() *Trace {
	return &Trace{start: time.Now()}
}

// SetPreparation records time spent before fan-out, transcription included.
func (t *Trace) SetPreparation(ms int64) {
	t.mu.Lock()
	t.preparationMS = ms
	t.mu.Unlock()
}

// Observe merges one run's timings, keeping the per-stage maximum.
func (t *Trace) Observe(tm Timings) {
	t.mu.Lock()
	if tm.TranscriptionMS > t.preparationMS {
		t.preparationMS = tm.TranscriptionMS
	}
	if tm.TranslationMS > t.translationMS {
		t.translationMS = tm.TranslationMS
	}
	if tm.SynthesisMS > t.synthesisMS {
		t.synthesisMS = tm.SynthesisMS
	}
	t.mu.Unlock()
}

// TraceSnapshot is a point-in-time copy of a trace's accumulators.
type TraceSnapshot struct {
	TotalMS       int64
	PreparationMS int64
	TranslationMS int64
	SynthesisMS   int64
}

// Snapshot captures the accumulators plus total elapsed since the trace
// started.
func (t *Trace) Snapshot() TraceSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return TraceSnapshot{
		TotalMS:       time.Since(t.start).Milliseconds(),
		PreparationMS: t.preparationMS,
		TranslationMS: t.translationMS,
		SynthesisMS:   t.synthesisMS,
	}
}

// ProcessingMS is the elapsed time not attributed to a provider stage,
// never negative.
func (s TraceSnapshot) ProcessingMS() int64 {
	p := s.TotalMS - s.TranslationMS - s.SynthesisMS
	if p < 0 {
		return 0
	}
	return p
}
