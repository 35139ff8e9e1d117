package synthesize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const (
	elevenLabsBaseURL      = "https://api.elevenlabs.io"
	elevenLabsDefaultModel = "eleven_multilingual_v2"

	// Fallback voice when neither the caller nor the catalog names one.
	elevenLabsDefaultVoice = "21m00Tcm4TlvDq8ikWAM"
)

// ElevenLabsProvider implements the TTS Provider interface using the
// ElevenLabs REST API.
type ElevenLabsProvider struct {
	apiKey     string
	model      string
	voices     map[string]string
	baseURL    string
	httpClient *http.Client
}

// NewElevenLabs creates a new ElevenLabs TTS provider. An empty model
// selects the default; voices maps lowercase language tags to voice IDs.
func NewElevenLabs(apiKey, model string, voices map[string]string) *ElevenLabsProvider {
	return NewElevenLabsWithClient(apiKey, model, voices, &http.Client{})
}

// NewElevenLabsWithClient creates a new ElevenLabs TTS provider with a
// custom HTTP client.
func NewElevenLabsWithClient(apiKey, model string, voices map[string]string, client *http.Client) *ElevenLabsProvider {
	if client == nil {
		client = &http.Client{}
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = elevenLabsDefaultModel
	}
	return &ElevenLabsProvider{
		apiKey:     strings.TrimSpace(apiKey),
		model:      model,
		voices:     voices,
		baseURL:    elevenLabsBaseURL,
		httpClient: client,
	}
}

// WithBaseURL overrides the API endpoint.
func (e *ElevenLabsProvider) WithBaseURL(base string) *ElevenLabsProvider {
	base = strings.TrimSpace(base)
	if base != "" {
		e.baseURL = strings.TrimSuffix(base, "/")
	}
	return e
}

// Name returns the provider identifier.
func (e *ElevenLabsProvider) Name() string {
	return "elevenlabs"
}

// Healthy reports whether the provider is usable at all.
func (e *ElevenLabsProvider) Healthy(ctx context.Context) error {
	if e.apiKey == "" {
		return fmt.Errorf("elevenlabs api key is not configured")
	}
	return nil
}

// Synthesize voices text via the text-to-speech endpoint.
func (e *ElevenLabsProvider) Synthesize(ctx context.Context, text string, opts Options) (*Synthesis, error) {
	if e.apiKey == "" {
		return nil, fmt.Errorf("elevenlabs api key is not configured")
	}

	voice := strings.TrimSpace(opts.Voice)
	if voice == "" {
		voice = lookupVoice(e.voices, opts.Language)
	}
	if voice == "" {
		voice = elevenLabsDefaultVoice
	}

	reqBody := elevenLabsRequest{
		Text:    text,
		ModelID: e.model,
		VoiceSettings: &elevenLabsVoiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
		},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	u, err := url.Parse(e.baseURL + "/v1/text-to-speech/" + url.PathEscape(voice))
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	q := u.Query()
	q.Set("output_format", "mp3_44100_128")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "POST", u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("xi-api-key", e.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("elevenlabs error %d: %s", resp.StatusCode, string(errBody))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("elevenlabs returned no audio")
	}
	return &Synthesis{Audio: audio, Format: "mp3"}, nil
}

type elevenLabsRequest struct {
	Text          string                   `json:"text"`
	ModelID       string                   `json:"model_id"`
	VoiceSettings *elevenLabsVoiceSettings `json:"voice_settings,omitempty"`
}

type elevenLabsVoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}
