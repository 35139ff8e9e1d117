package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const gtranslateBaseURL = "https://translation.googleapis.com"

// GoogleProvider implements the translation Provider interface using the
// Google Cloud Translation v2 REST API.
type GoogleProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewGoogle creates a new Google translation provider.
func NewGoogle(apiKey string) *GoogleProvider {
	return NewGoogleWithClient(apiKey, &http.Client{})
}

// NewGoogleWithClient creates a new Google translation provider with a
// custom HTTP client.
func NewGoogleWithClient(apiKey string, client *http.Client) *GoogleProvider {
	if client == nil {
		client = &http.Client{}
	}
	return &GoogleProvider{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    gtranslateBaseURL,
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
	return "gtranslate"
}

// Healthy reports whether the provider is usable at all.
func (g *GoogleProvider) Healthy(ctx context.Context) error {
	if g.apiKey == "" {
		return fmt.Errorf("google api key is not configured")
	}
	return nil
}

// Translate converts text using the v2 translate endpoint.
func (g *GoogleProvider) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	if g.apiKey == "" {
		return "", fmt.Errorf("google api key is not configured")
	}
	target := primarySubtag(targetLang)
	if target == "" {
		return "", fmt.Errorf("target language is required")
	}

	form := url.Values{}
	form.Set("q", text)
	form.Set("target", target)
	form.Set("format", "text")
	if source := primarySubtag(sourceLang); source != "" {
		form.Set("source", source)
	}

	u, err := url.Parse(g.baseURL + "/language/translate/v2")
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	q := u.Query()
	q.Set("key", g.apiKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "POST", u.String(), strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("gtranslate request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("gtranslate error %d: %s", resp.StatusCode, string(errBody))
	}

	var gResp gtranslateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gResp); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if len(gResp.Data.Translations) == 0 {
		return "", fmt.Errorf("gtranslate returned no translations")
	}
	// The v2 API escapes entities even with format=text.
	return html.UnescapeString(gResp.Data.Translations[0].TranslatedText), nil
}

type gtranslateResponse struct {
	Data struct {
		Translations []struct {
			TranslatedText         string `json:"translatedText"`
			DetectedSourceLanguage string `json:"detectedSourceLanguage,omitempty"`
		} `json:"translations"`
	} `json:"data"`
}
