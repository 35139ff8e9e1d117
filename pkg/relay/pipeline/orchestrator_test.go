package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/linguacast/linguacast/pkg/relay/providers/synthesize"
	"github.com/linguacast/linguacast/pkg/relay/providers/transcribe"
	"github.com/linguacast/linguacast/pkg/relay/providers/translate"
)

func newTestOrchestrator(t *testing.T, tr transcribe.Provider, tl translate.Provider, sy ...synthesize.Provider) *Orchestrator {
	t.Helper()
	transcribeChain, err := NewTranscribeChain([]transcribe.Provider{tr}, time.Second, testLogger())
	if err != nil {
		t.Fatalf("NewTranscribeChain: %v", err)
	}
	translateChain, err := NewTranslateChain([]translate.Provider{tl}, time.Second, testLogger())
	if err != nil {
		t.Fatalf("NewTranslateChain: %v", err)
	}
	synthChain, err := NewSynthChain(sy, time.Second, testLogger())
	if err != nil {
		t.Fatalf("NewSynthChain: %v", err)
	}
	orch, err := NewOrchestrator(transcribeChain, translateChain, synthChain, sy[0].Name(), testLogger())
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}
	return orch
}

func TestRun_TranslatesAndVoices(t *testing.T) {
	tr := &fakeTranscriber{name: "stt", text: "hello everyone"}
	tl := &fakeTranslator{name: "mt", out: "hola a todos"}
	sy := &fakeSynth{name: "tts", out: &synthesize.Synthesis{Audio: []byte("mp3"), Format: "mp3"}}
	orch := newTestOrchestrator(t, tr, tl, sy)

	result, err := orch.Run(context.Background(), Request{
		Audio:          []byte{1, 2, 3},
		SourceLanguage: "en-US",
		TargetLanguage: "es-ES",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.OriginalText != "hello everyone" {
		t.Fatalf("original = %q, want transcript", result.OriginalText)
	}
	if result.TranslatedText != "hola a todos" {
		t.Fatalf("translated = %q, want hola a todos", result.TranslatedText)
	}
	if string(result.Audio) != "mp3" || result.SynthesisTier != "tts" {
		t.Fatalf("audio = %q tier = %q, want voiced by tts", result.Audio, result.SynthesisTier)
	}
	if sy.lastText != "hola a todos" {
		t.Fatalf("synth input = %q, want translated text", sy.lastText)
	}
	if sy.lastOpts.Language != "es-ES" {
		t.Fatalf("synth language = %q, want target tag", sy.lastOpts.Language)
	}
}

func TestRun_SameLanguageSkipsTranslation(t *testing.T) {
	tr := &fakeTranscriber{name: "stt", text: "unused"}
	tl := &fakeTranslator{name: "mt", out: "should never appear"}
	sy := &fakeSynth{name: "tts", out: &synthesize.Synthesis{Audio: []byte("x")}}
	orch := newTestOrchestrator(t, tr, tl, sy)

	result, err := orch.Run(context.Background(), Request{
		Text:           "hola",
		SourceLanguage: "es",
		TargetLanguage: "es-ES",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.TranslatedText != "hola" {
		t.Fatalf("translated = %q, want original text unmodified", result.TranslatedText)
	}
	if tl.calls != 0 {
		t.Fatalf("translator calls = %d, want 0 for same language", tl.calls)
	}
	if tr.calls != 0 {
		t.Fatalf("transcriber calls = %d, want 0 for text request", tr.calls)
	}
}

func TestRun_TranslationExhaustedFallsBackToOriginal(t *testing.T) {
	tl := &fakeTranslator{name: "mt", err: errTier}
	sy := &fakeSynth{name: "tts", out: &synthesize.Synthesis{Audio: []byte("x")}}
	orch := newTestOrchestrator(t, &fakeTranscriber{name: "stt"}, tl, sy)

	result, err := orch.Run(context.Background(), Request{
		Text:           "good morning",
		SourceLanguage: "en",
		TargetLanguage: "es",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.TranslatedText != "good morning" {
		t.Fatalf("translated = %q, want original as fallback", result.TranslatedText)
	}
	if sy.lastText != "good morning" {
		t.Fatalf("synth input = %q, fallback text must still be voiced", sy.lastText)
	}
}

func TestRun_SynthesisExhaustedKeepsText(t *testing.T) {
	tl := &fakeTranslator{name: "mt", out: "hola"}
	sy := &fakeSynth{name: "tts", err: errTier}
	orch := newTestOrchestrator(t, &fakeTranscriber{name: "stt"}, tl, sy)

	result, err := orch.Run(context.Background(), Request{
		Text:           "hello",
		SourceLanguage: "en",
		TargetLanguage: "es",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.TranslatedText != "hola" {
		t.Fatalf("translated = %q, text must survive synthesis failure", result.TranslatedText)
	}
	if result.Audio != nil || result.SynthesisTier != "" || result.SpeechParams != nil {
		t.Fatalf("result = %+v, want no audio artifacts", result)
	}
	if result.Empty() {
		t.Fatal("result with text must not count as empty")
	}
}

func TestRun_TranscriptionExhaustedHaltsEarly(t *testing.T) {
	tr := &fakeTranscriber{name: "stt", err: errTier}
	tl := &fakeTranslator{name: "mt", out: "x"}
	sy := &fakeSynth{name: "tts", out: &synthesize.Synthesis{Audio: []byte("x")}}
	orch := newTestOrchestrator(t, tr, tl, sy)

	result, err := orch.Run(context.Background(), Request{
		Audio:          []byte{1},
		SourceLanguage: "en",
		TargetLanguage: "es",
	})
	if err != nil {
		t.Fatalf("Run: %v, provider failure must not escape", err)
	}
	if !result.Empty() {
		t.Fatalf("result = %+v, want empty result", result)
	}
	if tl.calls != 0 || sy.calls != 0 {
		t.Fatalf("downstream calls = %d/%d, want pipeline halted", tl.calls, sy.calls)
	}
}

func TestRun_BlankTranscriptShortCircuits(t *testing.T) {
	tr := &fakeTranscriber{name: "stt", text: "   "}
	tl := &fakeTranslator{name: "mt", out: "x"}
	sy := &fakeSynth{name: "tts", out: &synthesize.Synthesis{Audio: []byte("x")}}
	orch := newTestOrchestrator(t, tr, tl, sy)

	result, err := orch.Run(context.Background(), Request{
		Audio:          []byte{1},
		SourceLanguage: "en",
		TargetLanguage: "es",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Empty() || tl.calls != 0 || sy.calls != 0 {
		t.Fatal("silence should stop the pipeline before translation")
	}
}

func TestRun_TierPreferenceWins(t *testing.T) {
	var seq []string
	first := &fakeSynth{name: "first", out: &synthesize.Synthesis{Audio: []byte("a")}, seq: &seq}
	second := &fakeSynth{name: "second", out: &synthesize.Synthesis{SpeechParams: &synthesize.SpeechParams{Lang: "es"}}, seq: &seq}
	orch := newTestOrchestrator(t, &fakeTranscriber{name: "stt"}, &fakeTranslator{name: "mt", out: "hola"}, first, second)

	result, err := orch.Run(context.Background(), Request{
		Text:           "hello",
		SourceLanguage: "en",
		TargetLanguage: "es",
		TierPreference: "second",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.SynthesisTier != "second" {
		t.Fatalf("tier = %q, want requested preference", result.SynthesisTier)
	}
	if result.SpeechParams == nil || result.Audio != nil {
		t.Fatalf("result = %+v, want client-speech style output", result)
	}

	seq = seq[:0]
	result, err = orch.Run(context.Background(), Request{
		Text:           "hello",
		SourceLanguage: "en",
		TargetLanguage: "es",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.SynthesisTier != "first" {
		t.Fatalf("tier = %q, want process default without preference", result.SynthesisTier)
	}
}

func TestRun_RejectsMalformedRequests(t *testing.T) {
	orch := newTestOrchestrator(t,
		&fakeTranscriber{name: "stt", text: "x"},
		&fakeTranslator{name: "mt", out: "x"},
		&fakeSynth{name: "tts", out: &synthesize.Synthesis{Audio: []byte("x")}})

	if _, err := orch.Run(context.Background(), Request{Text: "hi", SourceLanguage: "en"}); err == nil {
		t.Fatal("expected error for missing target language")
	}
	if _, err := orch.Run(context.Background(), Request{SourceLanguage: "en", TargetLanguage: "es"}); err == nil {
		t.Fatal("expected error for request with neither text nor audio")
	}
}

func TestOrchestratorHealth(t *testing.T) {
	healthyStage := &checkedTranslator{fakeTranslator: fakeTranslator{name: "mt", out: "x"}}
	orch := newTestOrchestrator(t, &fakeTranscriber{name: "stt", text: "x"}, healthyStage,
		&fakeSynth{name: "tts", out: &synthesize.Synthesis{Audio: []byte("x")}})

	h := orch.Health(context.Background())
	if !h.Transcription || !h.Translation || !h.Synthesis || !h.Healthy {
		t.Fatalf("health = %+v, want all stages up", h)
	}

	healthyStage.healthErr = errTier
	h = orch.Health(context.Background())
	if h.Translation {
		t.Fatal("translation stage should report unhealthy")
	}
	if h.Healthy {
		t.Fatal("overall health is the AND of the stages")
	}
	if !h.Transcription || !h.Synthesis {
		t.Fatalf("health = %+v, other stages must be unaffected", h)
	}
}

func TestSameLanguage(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"es", "es-ES", true},
		{"es-ES", "es-MX", true},
		{"en-US", "es-ES", false},
		{"", "es", false},
		{"pt_BR", "pt-PT", true},
	}
	for _, tc := range cases {
		if got := SameLanguage(tc.a, tc.b); got != tc.want {
			t.Fatalf("SameLanguage(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}
