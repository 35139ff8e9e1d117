package transcribe

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const gspeechBaseURL = "https://speech.googleapis.com"

// GoogleProvider implements the STT Provider interface using the Google
// Cloud Speech-to-Text REST API.
type GoogleProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewGoogle creates a new Google STT provider.
func NewGoogle(apiKey string) *GoogleProvider {
	return NewGoogleWithClient(apiKey, &http.Client{})
}

// NewGoogleWithClient creates a new Google STT provider with a custom HTTP
// client.
func NewGoogleWithClient(apiKey string, client *http.Client) *GoogleProvider {
	if client == nil {
		client = &http.Client{}
	}
	return &GoogleProvider{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    gspeechBaseURL,
		httpClient: client,
	}
}

// WithBaseURL overrides the API endpoint.
func (g *GoogleProvider) WithBaseURL(base string) *GoogleProvider {
	base = strings.TrimSpace(base)
	if base != "" {
		g.baseURL = strings.TrimSuffix(base, "/")
	}
	return g
}

// Name returns the provider identifier.
func (g *GoogleProvider) Name() string {
	return "gspeech"
}

// Healthy reports whether the provider is usable at all.
func (g *GoogleProvider) Healthy(ctx context.Context) error {
	if g.apiKey == "" {
		return fmt.Errorf("google api key is not configured")
	}
	return nil
}

// Transcribe converts audio to text using the speech:recognize endpoint.
func (g *GoogleProvider) Transcribe(ctx context.Context, audio []byte, language string) (string, error) {
	if g.apiKey == "" {
		return "", fmt.Errorf("google api key is not configured")
	}

	language = strings.TrimSpace(language)
	if language == "" {
		language = "en-US"
	}

	reqBody := gspeechRequest{
		Config: gspeechConfig{
			// WEBM_OPUS is fixed at 48kHz.
			Encoding:        "WEBM_OPUS",
			SampleRateHertz: 48000,
			LanguageCode:    language,
		},
		Audio: gspeechAudio{
			Content: base64.StdEncoding.EncodeToString(audio),
		},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	u, err := url.Parse(g.baseURL + "/v1/speech:recognize")
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	q := u.Query()
	q.Set("key", g.apiKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "POST", u.String(), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("gspeech request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("gspeech error %d: %s", resp.StatusCode, string(errBody))
	}

	var gResp gspeechResponse
	if err := json.NewDecoder(resp.Body).Decode(&gResp); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	return gResp.transcript(), nil
}

type gspeechRequest struct {
	Config gspeechConfig `json:"config"`
	Audio  gspeechAudio  `json:"audio"`
}

type gspeechConfig struct {
	Encoding        string `json:"encoding"`
	SampleRateHertz int    `json:"sampleRateHertz"`
	LanguageCode    string `json:"languageCode"`
}

type gspeechAudio struct {
	Content string `json:"content"`
}

type gspeechResponse struct {
	Results []struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"results"`
}

// transcript joins the per-segment transcripts in order. Long utterances
// come back as multiple results.
func (r gspeechResponse) transcript() string {
	var parts []string
	for _, res := range r.Results {
		if len(res.Alternatives) == 0 {
			continue
		}
		if text := strings.TrimSpace(res.Alternatives[0].Transcript); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}
