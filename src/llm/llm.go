// Package llm sends an image plus a prompt to a vision model and returns the
// text answer.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"gritshot/src/settings"
)

const (
	systemPrompt = "You are a helpful vision assistant. Provide clear, concise, and accurate descriptions. " +
		"Answer in Indonesian if the user prompt is in Indonesian."
	pingPrompt    = `Say "pong" if you can read this.`
	noContentText = "(no content)"

	temperature    = 0.2
	maxTokens      = 1000
	pingMaxTokens  = 5
	defaultTimeout = 60 * time.Second
)

// ErrNoText is returned when a successful response carries no text.
var ErrNoText = errors.New("No response content received from API")

// Request is one analysis call. Image is a data URL for OpenAI and raw
// base64 for Gemini; see ImageEncoding.
type Request struct {
	Prompt string
	Image  string
	APIKey string
	Model  string
}

// APIError is a non-success HTTP response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API Error (%d): %s", e.StatusCode, e.Body)
}

// Encoding names the image form an Analyzer expects in Request.Image.
type Encoding int

const (
	EncodingDataURL Encoding = iota
	EncodingBase64
)

// Analyzer is a vision provider.
type Analyzer interface {
	Analyze(ctx context.Context, req Request) (string, error)
	// Ping sends a tiny text-only request and returns whatever text came back.
	Ping(ctx context.Context, apiKey, model string) (string, error)
	ImageEncoding() Encoding
}

// Options configures the analyzers. Empty base URLs select the public endpoints.
type Options struct {
	OpenAIBaseURL string
	GeminiBaseURL string
	HTTPClient    *http.Client
}

// Analyzers holds one analyzer per provider.
type Analyzers struct {
	OpenAI Analyzer
	Gemini Analyzer
}

func New(opts Options) *Analyzers {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}
	return &Analyzers{
		OpenAI: NewOpenAI(opts.OpenAIBaseURL, hc),
		Gemini: NewGemini(opts.GeminiBaseURL, hc),
	}
}

// For returns the analyzer of provider p.
func (a *Analyzers) For(p settings.Provider) (Analyzer, error) {
	switch p {
	case settings.ProviderOpenAI:
		return a.OpenAI, nil
	case settings.ProviderGemini:
		return a.Gemini, nil
	default:
		return nil, fmt.Errorf("unsupported provider %q", p)
	}
}

func validate(req Request) error {
	if req.APIKey == "" {
		return errors.New("API key is required")
	}
	if req.Model == "" {
		return errors.New("model is required")
	}
	return nil
}
