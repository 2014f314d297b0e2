package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"gritshot/src/logutil"
)

const openAIDefaultBaseURL = "https://api.openai.com/v1"

// OpenAI talks to a chat-completions endpoint.
type OpenAI struct {
	baseURL string
	hc      *http.Client
}

func NewOpenAI(baseURL string, hc *http.Client) *OpenAI {
	if baseURL == "" {
		baseURL = openAIDefaultBaseURL
	}
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}
	return &OpenAI{baseURL: strings.TrimRight(baseURL, "/"), hc: hc}
}

func (o *OpenAI) ImageEncoding() Encoding { return EncodingDataURL }

func (o *OpenAI) Analyze(ctx context.Context, req Request) (string, error) {
	if err := validate(req); err != nil {
		return "", err
	}
	chat := openai.ChatCompletionRequest{
		Model: req.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: req.Prompt},
					{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: req.Image}},
				},
			},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}

	log.Printf("llm: openai request model=%s key=%s image=%d bytes", req.Model, logutil.RedactKey(req.APIKey), len(req.Image))
	text, err := o.complete(ctx, req.APIKey, chat)
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}

func (o *OpenAI) Ping(ctx context.Context, apiKey, model string) (string, error) {
	if err := validate(Request{APIKey: apiKey, Model: model}); err != nil {
		return "", err
	}
	chat := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: "You are a helpful assistant."},
			{Role: openai.ChatMessageRoleUser, Content: pingPrompt},
		},
		MaxTokens: pingMaxTokens,
	}
	text, err := o.complete(ctx, apiKey, chat)
	if err != nil {
		return "", err
	}
	if text == "" {
		return noContentText, nil
	}
	return text, nil
}

func (o *OpenAI) complete(ctx context.Context, apiKey string, chat openai.ChatCompletionRequest) (string, error) {
	rec := &errorBodyRecorder{doer: o.hc}
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = o.baseURL
	cfg.HTTPClient = rec
	client := openai.NewClientWithConfig(cfg)

	resp, err := client.CreateChatCompletion(ctx, chat)
	if err != nil {
		return "", mapOpenAIError(rec, err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// mapOpenAIError turns client errors into APIError carrying the raw body.
func mapOpenAIError(rec *errorBodyRecorder, err error) error {
	if rec.status != 0 {
		log.Printf("llm: openai returned status %d", rec.status)
		return &APIError{StatusCode: rec.status, Body: string(rec.body)}
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &APIError{StatusCode: apiErr.HTTPStatusCode, Body: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &APIError{StatusCode: reqErr.HTTPStatusCode, Body: string(reqErr.Body)}
	}
	return fmt.Errorf("openai request failed: %w", err)
}

// errorBodyRecorder keeps a copy of the first non-success response body so
// the user sees what the server actually said.
type errorBodyRecorder struct {
	doer   openai.HTTPDoer
	status int
	body   []byte
}

func (r *errorBodyRecorder) Do(req *http.Request) (*http.Response, error) {
	resp, err := r.doer.Do(req)
	if err != nil || resp.StatusCode < http.StatusBadRequest {
		return resp, err
	}
	body, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	if readErr != nil {
		return nil, fmt.Errorf("failed to read error response: %w", readErr)
	}
	if r.status == 0 {
		r.status = resp.StatusCode
		r.body = body
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))
	return resp, nil
}
