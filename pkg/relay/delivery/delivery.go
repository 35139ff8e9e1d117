// Package delivery fans one speaker utterance out to its recipients, one
// pipeline run per distinct target language.
package delivery

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/linguacast/linguacast/pkg/relay/pipeline"
	"github.com/linguacast/linguacast/pkg/relay/protocol"
	"github.com/linguacast/linguacast/pkg/relay/registry"
	"github.com/linguacast/linguacast/pkg/relay/relayerr"
	"github.com/linguacast/linguacast/pkg/relay/store"
)

// maxAttempts bounds sends per recipient. Retries are immediate; a send
// that fails three times marks the recipient undelivered and moves on.
const maxAttempts = 3

// Source is one utterance to fan out: pre-transcribed text, or a raw audio
// chunk that gets transcribed once before partitioning.
type Source struct {
	Text           string
	Audio          []byte
	SourceLanguage string
	Session        string
}

// Outcome records how delivery went for one recipient. Logging and tests
// only; outcomes are never persisted.
type Outcome struct {
	Recipient   string
	Language    string
	Delivered   bool
	Attempts    int
	ConfigFault bool
	Err         error
}

// Summary aggregates one fan-out. OriginalText carries the transcript when
// the source was audio, so callers can echo it back to the speaker.
type Summary struct {
	OriginalText string
	Outcomes     []Outcome
}

// Delivered counts recipients whose send was accepted.
func (s Summary) Delivered() int {
	n := 0
	for _, o := range s.Outcomes {
		if o.Delivered {
			n++
		}
	}
	return n
}

// Service fans utterances out to recipients: one pipeline run per distinct
// target language, concurrent per-recipient sends with bounded retries, and
// fire-and-forget transcript persistence.
type Service struct {
	orch   *pipeline.Orchestrator
	store  store.Store
	logger *slog.Logger
}

func NewService(orch *pipeline.Orchestrator, st store.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{orch: orch, store: st, logger: logger}
}

// Deliver fans src out to recipients and reports per-recipient outcomes; it
// never fails as a whole. Recipients without a language tag get a
// config-fault outcome and zero sends. One slow or dead recipient never
// holds up its siblings.
func (s *Service) Deliver(ctx context.Context, src Source, recipients []*registry.Client, trace *pipeline.Trace) Summary {
	if trace == nil {
		trace = pipeline.NewTrace()
	}
	var sum Summary
	var mu sync.Mutex
	add := func(o Outcome) {
		mu.Lock()
		sum.Outcomes = append(sum.Outcomes, o)
		mu.Unlock()
	}

	text := strings.TrimSpace(src.Text)
	if text == "" && len(src.Audio) > 0 {
		start := time.Now()
		transcript, err := s.orch.Transcribe(ctx, src.Audio, src.SourceLanguage)
		trace.SetPreparation(time.Since(start).Milliseconds())
		if err != nil {
			s.logger.Warn("transcription unavailable, dropping utterance", "session", src.Session, "err", err)
			return sum
		}
		text = strings.TrimSpace(transcript)
	}
	if text == "" {
		return sum
	}
	sum.OriginalText = text

	groups := make(map[string][]*registry.Client)
	for _, rec := range recipients {
		lang := strings.TrimSpace(rec.Language())
		if lang == "" {
			s.logger.Warn("recipient has no language tag, skipping", "conn", rec.ID())
			add(Outcome{
				Recipient:   rec.ID(),
				ConfigFault: true,
				Err:         relayerr.Config("recipient has no language tag"),
			})
			continue
		}
		groups[lang] = append(groups[lang], rec)
	}
	if len(groups) == 0 {
		return sum
	}

	var wg sync.WaitGroup
	for lang, group := range groups {
		wg.Add(1)
		go func(lang string, group []*registry.Client) {
			defer wg.Done()
			s.runLanguage(ctx, src, text, lang, group, trace, add)
		}(lang, group)
	}
	wg.Wait()
	return sum
}

// runLanguage executes one pipeline run and fans its result out to every
// recipient of that language concurrently.
func (s *Service) runLanguage(ctx context.Context, src Source, text, lang string, group []*registry.Client, trace *pipeline.Trace, add func(Outcome)) {
	req := pipeline.Request{
		Text:           text,
		SourceLanguage: src.SourceLanguage,
		TargetLanguage: lang,
		TierPreference: firstSetting(group, protocol.SettingSynthesisTier),
		Voice:          firstSetting(group, protocol.SettingVoice),
	}
	result, err := s.orch.Run(ctx, req)
	if err != nil {
		s.logger.Error("pipeline rejected request", "lang", lang, "err", err)
		for _, rec := range group {
			add(Outcome{Recipient: rec.ID(), Language: lang, Err: err})
		}
		return
	}
	trace.Observe(result.Timings)

	msg := protocol.Translation{
		Type:           protocol.TypeTranslation,
		Text:           result.TranslatedText,
		OriginalText:   result.OriginalText,
		SourceLanguage: src.SourceLanguage,
		TargetLanguage: lang,
	}
	if len(result.Audio) > 0 {
		msg.AudioData = base64.StdEncoding.EncodeToString(result.Audio)
	}
	if result.SpeechParams != nil {
		msg.UseClientSpeech = true
		msg.SpeechParams = &protocol.SpeechParams{
			Lang:  result.SpeechParams.Lang,
			Voice: result.SpeechParams.Voice,
			Rate:  result.SpeechParams.Rate,
			Pitch: result.SpeechParams.Pitch,
		}
	}

	var wg sync.WaitGroup
	for _, rec := range group {
		wg.Add(1)
		go func(rec *registry.Client) {
			defer wg.Done()
			out := s.sendOne(rec, msg, trace)
			if out.Delivered {
				s.persist(src, result, rec.ID(), lang)
			} else if out.Err != nil {
				s.logger.Warn("delivery failed", "conn", rec.ID(), "lang", lang, "attempts", out.Attempts, "err", out.Err)
			}
			add(out)
		}(rec)
	}
	wg.Wait()
}

// sendOne queues the message for one recipient, retrying up to maxAttempts.
// The latency stamp is taken per recipient so network reflects that
// connection's own measured round trip.
func (s *Service) sendOne(rec *registry.Client, msg protocol.Translation, trace *pipeline.Trace) Outcome {
	out := Outcome{Recipient: rec.ID(), Language: msg.TargetLanguage}

	msg.Latency = stamp(trace, rec.RTT())
	payload, err := json.Marshal(msg)
	if err != nil {
		out.Err = err
		return out
	}

	for out.Attempts = 1; out.Attempts <= maxAttempts; out.Attempts++ {
		if err = rec.Send(payload); err == nil {
			out.Delivered = true
			return out
		}
	}
	out.Attempts = maxAttempts
	out.Err = relayerr.Delivery(err)
	return out
}

// persist appends one transcript entry without blocking the fan-out. Store
// failures are logged and otherwise ignored.
func (s *Service) persist(src Source, result pipeline.Result, recipient, lang string) {
	if s.store == nil {
		return
	}
	entry := store.Entry{
		Session:        src.Session,
		Recipient:      recipient,
		SourceLanguage: src.SourceLanguage,
		TargetLanguage: lang,
		OriginalText:   result.OriginalText,
		TranslatedText: result.TranslatedText,
		SynthesisTier:  result.SynthesisTier,
		LatencyMS:      result.Timings.TranslationMS + result.Timings.SynthesisMS,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.store.Append(ctx, entry); err != nil {
			s.logger.Warn("transcript append failed", "session", entry.Session, "err", err)
		}
	}()
}

// stamp builds the latency block for one recipient: pipeline components
// from the shared trace, network from the recipient's last measured RTT.
func stamp(trace *pipeline.Trace, rtt time.Duration) protocol.Latency {
	snap := trace.Snapshot()
	return protocol.Latency{
		Total: snap.TotalMS,
		Components: protocol.LatencyComponents{
			Translation: snap.TranslationMS,
			TTS:         snap.SynthesisMS,
			Processing:  snap.ProcessingMS(),
			Network:     rtt.Milliseconds(),
		},
	}
}

// firstSetting returns the first non-empty value of key among the group, in
// recipient order. When listeners of one language disagree on a preference,
// the earliest-connected one wins for the shared run.
func firstSetting(group []*registry.Client, key string) string {
	for _, rec := range group {
		if v := strings.TrimSpace(rec.Setting(key)); v != "" {
			return v
		}
	}
	return ""
}
