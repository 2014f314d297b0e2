package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"

	"gritshot/src/logutil"
)

const (
	geminiDefaultBaseURL = "https://generativelanguage.googleapis.com"
	geminiImageMimeType  = "image/jpeg"
)

// Gemini talks to the generateContent REST endpoint.
type Gemini struct {
	baseURL string
	hc      *http.Client
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
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

func NewGemini(baseURL string, hc *http.Client) *Gemini {
	if baseURL == "" {
		baseURL = geminiDefaultBaseURL
	}
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}
	return &Gemini{baseURL: strings.TrimRight(baseURL, "/"), hc: hc}
}

func (g *Gemini) ImageEncoding() Encoding { return EncodingBase64 }

func (g *Gemini) Analyze(ctx context.Context, req Request) (string, error) {
	if err := validate(req); err != nil {
		return "", err
	}
	body := geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{
			{Text: req.Prompt},
			{InlineData: &geminiInlineData{MimeType: geminiImageMimeType, Data: req.Image}},
		}}},
		GenerationConfig: geminiGenerationConfig{Temperature: temperature, MaxOutputTokens: maxTokens},
	}
	log.Printf("llm: gemini request model=%s key=%s image=%d bytes", req.Model, logutil.RedactKey(req.APIKey), len(req.Image))
	text, err := g.generate(ctx, req.APIKey, req.Model, body)
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}

func (g *Gemini) Ping(ctx context.Context, apiKey, model string) (string, error) {
	if err := validate(Request{APIKey: apiKey, Model: model}); err != nil {
		return "", err
	}
	body := geminiRequest{
		Contents:         []geminiContent{{Parts: []geminiPart{{Text: pingPrompt}}}},
		GenerationConfig: geminiGenerationConfig{MaxOutputTokens: pingMaxTokens},
	}
	text, err := g.generate(ctx, apiKey, model, body)
	if err != nil {
		return "", err
	}
	if text == "" {
		return noContentText, nil
	}
	return text, nil
}

func (g *Gemini) endpoint(model, apiKey string) string {
	return fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		g.baseURL, url.PathEscape(model), url.QueryEscape(apiKey))
}

func (g *Gemini) generate(ctx context.Context, apiKey, model string, body geminiRequest) (string, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint(model, apiKey), bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("llm: gemini returned status %d", resp.StatusCode)
		return "", &APIError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var parsed geminiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", nil
	}
	return strings.TrimSpace(parsed.Candidates[0].Content.Parts[0].Text), nil
}
