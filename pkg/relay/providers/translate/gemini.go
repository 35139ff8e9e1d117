package translate

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
	geminiBaseURL      = "https://generativelanguage.googleapis.com/v1beta"
	geminiDefaultModel = "gemini-2.0-flash"
)

// GeminiProvider implements the translation Provider interface by prompting
// a Gemini model. It is the slowest tier and sits last in the default chain.
type GeminiProvider struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewGemini creates a new Gemini translation provider. An empty model
// selects the default.
func NewGemini(apiKey, model string) *GeminiProvider {
	return NewGeminiWithClient(apiKey, model, &http.Client{})
}

// NewGeminiWithClient creates a new Gemini translation provider with a
// custom HTTP client.
func NewGeminiWithClient(apiKey, model string, client *http.Client) *GeminiProvider {
	if client == nil {
		client = &http.Client{}
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = geminiDefaultModel
	}
	return &GeminiProvider{
		apiKey:     strings.TrimSpace(apiKey),
		model:      model,
		baseURL:    geminiBaseURL,
		httpClient: client,
	}
}

// WithBaseURL overrides the API endpoint.
func (g *GeminiProvider) WithBaseURL(base string) *GeminiProvider {
	base = strings.TrimSpace(base)
	if base != "" {
		g.baseURL = strings.TrimSuffix(base, "/")
	}
	return g
}

// Name returns the provider identifier.
func (g *GeminiProvider) Name() string {
	return "gemini"
}

// Healthy reports whether the provider is usable at all.
func (g *GeminiProvider) Healthy(ctx context.Context) error {
	if g.apiKey == "" {
		return fmt.Errorf("gemini api key is not configured")
	}
	return nil
}

// Translate converts text via a generateContent prompt.
func (g *GeminiProvider) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	if g.apiKey == "" {
		return "", fmt.Errorf("gemini api key is not configured")
	}
	targetLang = strings.TrimSpace(targetLang)
	if targetLang == "" {
		return "", fmt.Errorf("target language is required")
	}

	prompt := buildPrompt(text, sourceLang, targetLang)
	reqBody := geminiRequest{
		Contents: []geminiContent{
			{Parts: []geminiPart{{Text: prompt}}},
		},
		GenerationConfig: &geminiGenerationConfig{Temperature: 0.1},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, url.PathEscape(g.model))
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("gemini error %d: %s", resp.StatusCode, string(errBody))
	}

	var gResp geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&gResp); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	out := gResp.text()
	if out == "" {
		return "", fmt.Errorf("gemini returned no candidates")
	}
	return stripDecoration(out), nil
}

func buildPrompt(text, sourceLang, targetLang string) string {
	var b strings.Builder
	if strings.TrimSpace(sourceLang) != "" {
		fmt.Fprintf(&b, "Translate the following text from %s to %s.", sourceLang, targetLang)
	} else {
		fmt.Fprintf(&b, "Translate the following text to %s.", targetLang)
	}
	b.WriteString(" Reply with the translation only, no explanations.\n\n")
	b.WriteString(text)
	return b.String()
}

// stripDecoration removes the code fences and wrapping quotes models add
// despite the prompt.
func stripDecoration(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if i := strings.Index(s, "\n"); i >= 0 {
			s = s[i+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	return strings.TrimSpace(s)
}

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	Temperature float64 `json:"temperature,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (r geminiResponse) text() string {
	for _, cand := range r.Candidates {
		for _, part := range cand.Content.Parts {
			if strings.TrimSpace(part.Text) != "" {
				return part.Text
			}
		}
	}
	return ""
}
