package dispatch

import (
	"context"
	"encoding/base64"
	"log/slog"
	"strings"
	"time"

	"github.com/linguacast/linguacast/pkg/relay/delivery"
	"github.com/linguacast/linguacast/pkg/relay/pipeline"
	"github.com/linguacast/linguacast/pkg/relay/protocol"
	"github.com/linguacast/linguacast/pkg/relay/registry"
	"github.com/linguacast/linguacast/pkg/relay/relayerr"
)

// RegisterHandler applies role/language/settings updates and echoes the
// resulting connection state back as an acknowledgement.
type RegisterHandler struct {
	logger *slog.Logger
}

func NewRegisterHandler(logger *slog.Logger) *RegisterHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RegisterHandler{logger: logger}
}

func (h *RegisterHandler) CanHandle(msgType string) bool {
	return msgType == protocol.TypeRegister
}

func (h *RegisterHandler) Handle(ctx context.Context, client *registry.Client, msg any) (bool, error) {
	m, ok := msg.(protocol.Register)
	if !ok {
		return false, nil
	}
	if m.Role != "" {
		client.SetRole(m.Role)
	}
	if m.LanguageCode != "" {
		client.SetLanguage(m.LanguageCode)
	}
	client.UpdateSettings(m.Settings)

	h.logger.Debug("client registered", "conn", client.ID(), "role", client.Role(), "lang", client.Language())
	ack := protocol.NewRegisterAck(protocol.RegisterData{
		Role:         client.Role(),
		LanguageCode: client.Language(),
		Settings:     client.Settings(),
	})
	return true, client.SendJSON(ack)
}

// RelayHandler owns both speaker inputs: transcribed text frames and raw or
// base64 audio chunks. Both fan out to the session's listeners; the audio
// path additionally echoes the transcript back to the speaker.
type RelayHandler struct {
	registry              *registry.Registry
	delivery              *delivery.Service
	defaultSourceLanguage string
	logger                *slog.Logger
}

func NewRelayHandler(reg *registry.Registry, svc *delivery.Service, defaultSourceLanguage string, logger *slog.Logger) *RelayHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RelayHandler{
		registry:              reg,
		delivery:              svc,
		defaultSourceLanguage: defaultSourceLanguage,
		logger:                logger,
	}
}

func (h *RelayHandler) CanHandle(msgType string) bool {
	return msgType == protocol.TypeTranscription || msgType == protocol.TypeAudio
}

func (h *RelayHandler) Handle(ctx context.Context, client *registry.Client, msg any) (bool, error) {
	switch m := msg.(type) {
	case protocol.Transcription:
		return true, h.relay(ctx, client, delivery.Source{Text: m.Text})
	case protocol.Audio:
		chunk, err := base64.StdEncoding.DecodeString(m.Data)
		if err != nil {
			return true, relayerr.Malformed("audio.data is not valid base64", "data")
		}
		return true, h.relay(ctx, client, delivery.Source{Audio: chunk})
	default:
		return false, nil
	}
}

// HandleBinary accepts a raw audio chunk from the transport read loop.
func (h *RelayHandler) HandleBinary(ctx context.Context, client *registry.Client, chunk []byte) (bool, error) {
	return true, h.relay(ctx, client, delivery.Source{Audio: chunk})
}

func (h *RelayHandler) relay(ctx context.Context, client *registry.Client, src delivery.Source) error {
	if client.Role() != protocol.RoleSpeaker {
		return relayerr.Malformed("only speakers broadcast", "role")
	}
	src.Session = client.Session()
	src.SourceLanguage = client.Language()
	if strings.TrimSpace(src.SourceLanguage) == "" {
		src.SourceLanguage = h.defaultSourceLanguage
	}

	trace := pipeline.NewTrace()
	sum := h.delivery.Deliver(ctx, src, h.listeners(client), trace)

	// Speakers get their own transcript back when the source was audio.
	if len(src.Audio) > 0 && sum.OriginalText != "" {
		result := protocol.TranscriptionResult{Type: protocol.TypeTranscriptionResult, Text: sum.OriginalText}
		if err := client.SendJSON(result); err != nil {
			h.logger.Warn("transcript echo dropped", "conn", client.ID(), "err", err)
		}
	}

	h.logger.Debug("utterance relayed",
		"conn", client.ID(),
		"session", src.Session,
		"recipients", len(sum.Outcomes),
		"delivered", sum.Delivered())
	return nil
}

func (h *RelayHandler) listeners(speaker *registry.Client) []*registry.Client {
	var out []*registry.Client
	for _, c := range h.registry.BySession(speaker.Session()) {
		if c.ID() == speaker.ID() || c.Role() != protocol.RoleListener {
			continue
		}
		out = append(out, c)
	}
	return out
}

// TTSHandler voices one piece of text on demand for the requesting
// connection.
type TTSHandler struct {
	orch   *pipeline.Orchestrator
	logger *slog.Logger
}

func NewTTSHandler(orch *pipeline.Orchestrator, logger *slog.Logger) *TTSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TTSHandler{orch: orch, logger: logger}
}

func (h *TTSHandler) CanHandle(msgType string) bool {
	return msgType == protocol.TypeTTSRequest
}

func (h *TTSHandler) Handle(ctx context.Context, client *registry.Client, msg any) (bool, error) {
	m, ok := msg.(protocol.TTSRequest)
	if !ok {
		return false, nil
	}

	synth, tier := h.orch.Synthesize(ctx, m.Text, m.LanguageCode, m.Voice, client.Setting(protocol.SettingSynthesisTier))
	resp := protocol.TTSResponse{Type: protocol.TypeTTSResponse, Status: protocol.StatusOK}
	switch {
	case synth == nil:
		resp.Status = protocol.StatusError
		resp.Error = "synthesis unavailable"
	default:
		if len(synth.Audio) > 0 {
			resp.AudioData = base64.StdEncoding.EncodeToString(synth.Audio)
		}
		if synth.SpeechParams != nil {
			resp.SpeechParams = &protocol.SpeechParams{
				Lang:  synth.SpeechParams.Lang,
				Voice: synth.SpeechParams.Voice,
				Rate:  synth.SpeechParams.Rate,
				Pitch: synth.SpeechParams.Pitch,
			}
		}
		h.logger.Debug("tts request served", "conn", client.ID(), "tier", tier)
	}
	return true, client.SendJSON(resp)
}

// PingHandler answers latency probes with the server clock plus the
// client's original timestamp echoed back.
type PingHandler struct{}

func NewPingHandler() *PingHandler { return &PingHandler{} }

func (h *PingHandler) CanHandle(msgType string) bool {
	return msgType == protocol.TypePing
}

func (h *PingHandler) Handle(ctx context.Context, client *registry.Client, msg any) (bool, error) {
	m, ok := msg.(protocol.Ping)
	if !ok {
		return false, nil
	}
	pong := protocol.Pong{
		Type:              protocol.TypePong,
		Timestamp:         time.Now().UnixMilli(),
		OriginalTimestamp: m.Timestamp,
	}
	return true, client.SendJSON(pong)
}
