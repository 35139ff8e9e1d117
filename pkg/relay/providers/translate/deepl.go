package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const (
	deeplProBaseURL  = "https://api.deepl.com"
	deeplFreeBaseURL = "https://api-free.deepl.com"
)

// DeepLProvider implements the translation Provider interface using the
// DeepL v2 REST API.
type DeepLProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewDeepL creates a new DeepL translation provider. Free-tier keys are
// suffixed ":fx" and live on a separate host.
func NewDeepL(apiKey string) *DeepLProvider {
	return NewDeepLWithClient(apiKey, &http.Client{})
}

// NewDeepLWithClient creates a new DeepL translation provider with a custom
// HTTP client.
func NewDeepLWithClient(apiKey string, client *http.Client) *DeepLProvider {
	if client == nil {
		client = &http.Client{}
	}
	apiKey = strings.TrimSpace(apiKey)
	base := deeplProBaseURL
	if strings.HasSuffix(apiKey, ":fx") {
		base = deeplFreeBaseURL
	}
	return &DeepLProvider{
		apiKey:     apiKey,
		baseURL:    base,
		httpClient: client,
	}
}

// WithBaseURL overrides the API endpoint.
func (d *DeepLProvider) WithBaseURL(base string) *DeepLProvider {
	base = strings.TrimSpace(base)
	if base != "" {
		d.baseURL = strings.TrimSuffix(base, "/")
	}
	return d
}

// Name returns the provider identifier.
func (d *DeepLProvider) Name() string {
	return "deepl"
}

// Healthy reports whether the provider is usable at all.
func (d *DeepLProvider) Healthy(ctx context.Context) error {
	if d.apiKey == "" {
		return fmt.Errorf("deepl api key is not configured")
	}
	return nil
}

// Translate converts text using the v2 translate endpoint.
func (d *DeepLProvider) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	if d.apiKey == "" {
		return "", fmt.Errorf("deepl api key is not configured")
	}
	target := deeplTarget(targetLang)
	if target == "" {
		return "", fmt.Errorf("target language is required")
	}

	form := url.Values{}
	form.Set("text", text)
	form.Set("target_lang", target)
	if source := strings.ToUpper(primarySubtag(sourceLang)); source != "" {
		form.Set("source_lang", source)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", d.baseURL+"/v2/translate", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "DeepL-Auth-Key "+d.apiKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("deepl request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("deepl error %d: %s", resp.StatusCode, string(errBody))
	}

	var dResp deeplResponse
	if err := json.NewDecoder(resp.Body).Decode(&dResp); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if len(dResp.Translations) == 0 {
		return "", fmt.Errorf("deepl returned no translations")
	}
	return dResp.Translations[0].Text, nil
}

type deeplResponse struct {
	Translations []struct {
		DetectedSourceLanguage string `json:"detected_source_language"`
		Text                   string `json:"text"`
	} `json:"translations"`
}

// deeplTarget maps a BCP-47 tag to DeepL's target_lang values. DeepL keeps
// the region only for the variants it distinguishes.
func deeplTarget(tag string) string {
	upper := strings.ToUpper(strings.TrimSpace(strings.ReplaceAll(tag, "_", "-")))
	switch upper {
	case "EN-GB", "EN-US", "PT-BR", "PT-PT", "ZH-HANS", "ZH-HANT":
		return upper
	}
	if i := strings.Index(upper, "-"); i > 0 {
		upper = upper[:i]
	}
	return upper
}
