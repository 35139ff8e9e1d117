package transcribe

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
	deepgramBaseURL      = "https://api.deepgram.com"
	deepgramDefaultModel = "nova-2"
)

// DeepgramProvider implements the STT Provider interface using Deepgram's
// prerecorded transcription API.
type DeepgramProvider struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewDeepgram creates a new Deepgram STT provider. An empty model selects
// the default.
func NewDeepgram(apiKey, model string) *DeepgramProvider {
	return NewDeepgramWithClient(apiKey, model, &http.Client{})
}

// NewDeepgramWithClient creates a new Deepgram STT provider with a custom
// HTTP client.
func NewDeepgramWithClient(apiKey, model string, client *http.Client) *DeepgramProvider {
	if client == nil {
		client = &http.Client{}
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = deepgramDefaultModel
	}
	return &DeepgramProvider{
		apiKey:     strings.TrimSpace(apiKey),
		model:      model,
		baseURL:    deepgramBaseURL,
		httpClient: client,
	}
}

// WithBaseURL overrides the API endpoint.
func (d *DeepgramProvider) WithBaseURL(base string) *DeepgramProvider {
	base = strings.TrimSpace(base)
	if base != "" {
		d.baseURL = strings.TrimSuffix(base, "/")
	}
	return d
}

// Name returns the provider identifier.
func (d *DeepgramProvider) Name() string {
	return "deepgram"
}

// Healthy reports whether the provider is usable at all.
func (d *DeepgramProvider) Healthy(ctx context.Context) error {
	if d.apiKey == "" {
		return fmt.Errorf("deepgram api key is not configured")
	}
	return nil
}

// Transcribe converts audio to text using Deepgram's listen endpoint.
func (d *DeepgramProvider) Transcribe(ctx context.Context, audio []byte, language string) (string, error) {
	if d.apiKey == "" {
		return "", fmt.Errorf("deepgram api key is not configured")
	}

	u, err := url.Parse(d.baseURL + "/v1/listen")
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	q := u.Query()
	q.Set("model", d.model)
	q.Set("smart_format", "true")
	if lang := primarySubtag(language); lang != "" {
		q.Set("language", lang)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "POST", u.String(), bytes.NewReader(audio))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+d.apiKey)
	req.Header.Set("Content-Type", "audio/webm")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("deepgram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("deepgram error %d: %s", resp.StatusCode, string(body))
	}

	var dgResp deepgramResponse
	if err := json.NewDecoder(resp.Body).Decode(&dgResp); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	return dgResp.transcript(), nil
}

type deepgramResponse struct {
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

func (r deepgramResponse) transcript() string {
	for _, ch := range r.Results.Channels {
		for _, alt := range ch.Alternatives {
			if strings.TrimSpace(alt.Transcript) != "" {
				return alt.Transcript
			}
		}
	}
	return ""
}
