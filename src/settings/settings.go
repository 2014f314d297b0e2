// Package settings loads and saves the provider configuration: which vision
// backend is active, its API key and model, and the default prompt.
package settings

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"gritshot/src/kvstore"
	"gritshot/src/logutil"
)

type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGemini Provider = "gemini"
)

// Storage keys. The schema carries no version; absent keys imply defaults.
const (
	KeyProvider      = "ai_provider"
	KeyOpenAIKey     = "openai_api_key"
	KeyOpenAIModel   = "openai_model"
	KeyGeminiKey     = "gemini_api_key"
	KeyGeminiModel   = "gemini_model"
	KeyDefaultPrompt = "default_prompt"
)

const (
	DefaultOpenAIModel   = "gpt-4o-mini"
	DefaultGeminiModel   = "gemini-1.5-flash-latest"
	DefaultPrompt        = "Describe this image."
	OpenAIKeyPrefix      = "sk-"
	OpenAIKeyMinLength   = 40
	GeminiKeyPrefix      = "AIza"
	GeminiKeyMinLength   = 39
	fieldOpenAIKeyLabel  = "OpenAI API Key"
	fieldGeminiKeyLabel  = "Gemini API Key"
	fieldModelLabel      = "Model"
	fieldPromptLabel     = "Default Prompt"
	fieldProviderLabel   = "AI Provider"
	errLoadNoticeMessage = "Error loading settings"
)

var allKeys = []string{KeyProvider, KeyOpenAIKey, KeyOpenAIModel, KeyGeminiKey, KeyGeminiModel, KeyDefaultPrompt}

// ErrLoad is wrapped by the notice Load returns when it had to fall back to defaults.
var ErrLoad = errors.New(errLoadNoticeMessage)

type Settings struct {
	Provider      Provider
	OpenAIKey     string
	OpenAIModel   string
	GeminiKey     string
	GeminiModel   string
	DefaultPrompt string
}

func Defaults() Settings {
	return Settings{
		Provider:      ProviderOpenAI,
		OpenAIModel:   DefaultOpenAIModel,
		GeminiModel:   DefaultGeminiModel,
		DefaultPrompt: DefaultPrompt,
	}
}

// ActiveKey returns the API key of the selected provider.
func (s Settings) ActiveKey() string {
	if s.Provider == ProviderGemini {
		return s.GeminiKey
	}
	return s.OpenAIKey
}

// ActiveModel returns the model of the selected provider.
func (s Settings) ActiveModel() string {
	if s.Provider == ProviderGemini {
		return s.GeminiModel
	}
	return s.OpenAIModel
}

// HasAnyKey reports whether any provider key is configured.
func (s Settings) HasAnyKey() bool {
	return s.OpenAIKey != "" || s.GeminiKey != ""
}

// ParseProvider maps user input onto a Provider.
func ParseProvider(v string) (Provider, error) {
	switch Provider(strings.ToLower(strings.TrimSpace(v))) {
	case ProviderOpenAI:
		return ProviderOpenAI, nil
	case ProviderGemini:
		return ProviderGemini, nil
	default:
		return "", fmt.Errorf("unknown provider %q", v)
	}
}

// ValidationError names the settings field that blocked a save.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Validate applies the save policy in field order: key presence, key format,
// model, default prompt.
func Validate(s Settings) error {
	if s.Provider != ProviderOpenAI && s.Provider != ProviderGemini {
		return &ValidationError{Field: KeyProvider, Message: fmt.Sprintf("Please select a valid %s.", fieldProviderLabel)}
	}
	keyField, keyLabel := KeyOpenAIKey, fieldOpenAIKeyLabel
	modelField := KeyOpenAIModel
	if s.Provider == ProviderGemini {
		keyField, keyLabel = KeyGeminiKey, fieldGeminiKeyLabel
		modelField = KeyGeminiModel
	}

	if strings.TrimSpace(s.ActiveKey()) == "" {
		return &ValidationError{Field: keyField, Message: fmt.Sprintf("Please enter your %s.", keyLabel)}
	}
	if err := validateKeyFormat(s.Provider, strings.TrimSpace(s.ActiveKey())); err != nil {
		return err
	}
	if strings.TrimSpace(s.ActiveModel()) == "" {
		return &ValidationError{Field: modelField, Message: fmt.Sprintf("Please choose a %s.", fieldModelLabel)}
	}
	if strings.TrimSpace(s.DefaultPrompt) == "" {
		return &ValidationError{Field: KeyDefaultPrompt, Message: fmt.Sprintf("Please enter a %s.", fieldPromptLabel)}
	}
	return nil
}

func validateKeyFormat(p Provider, key string) error {
	switch p {
	case ProviderGemini:
		if !strings.HasPrefix(key, GeminiKeyPrefix) || len(key) < GeminiKeyMinLength {
			return &ValidationError{
				Field:   KeyGeminiKey,
				Message: fmt.Sprintf("Invalid Gemini API Key. It must start with '%s' and be complete.", GeminiKeyPrefix),
			}
		}
	default:
		if !strings.HasPrefix(key, OpenAIKeyPrefix) || len(key) < OpenAIKeyMinLength {
			return &ValidationError{
				Field:   KeyOpenAIKey,
				Message: fmt.Sprintf("Invalid OpenAI API Key. It must start with '%s' and be complete.", OpenAIKeyPrefix),
			}
		}
	}
	return nil
}

// Store wraps a kvstore.Store with the settings lifecycle. It is constructed
// once at startup; Current reflects the last successful Load, Save or ClearKeys.
type Store struct {
	kv      kvstore.Store
	current Settings
}

func NewStore(kv kvstore.Store) *Store {
	return &Store{kv: kv, current: Defaults()}
}

func (s *Store) Current() Settings { return s.current }

// Load reads all settings. It fails soft: on a backend error it returns the
// defaults together with a notice wrapping ErrLoad.
func (s *Store) Load(ctx context.Context) (Settings, error) {
	values, err := s.kv.Get(ctx, allKeys...)
	if err != nil {
		log.Printf("settings: load failed: %v", err)
		s.current = Defaults()
		return s.current, fmt.Errorf("%w: %v", ErrLoad, err)
	}

	out := Defaults()
	if v := values[KeyProvider]; v != "" {
		if p, err := ParseProvider(v); err == nil {
			out.Provider = p
		} else {
			log.Printf("settings: ignoring stored provider %q", v)
		}
	}
	out.OpenAIKey = values[KeyOpenAIKey]
	out.GeminiKey = values[KeyGeminiKey]
	if v := values[KeyOpenAIModel]; v != "" {
		out.OpenAIModel = v
	}
	if v := values[KeyGeminiModel]; v != "" {
		out.GeminiModel = v
	}
	if v := values[KeyDefaultPrompt]; v != "" {
		out.DefaultPrompt = v
	}

	log.Printf("settings: loaded provider=%s openai_key=%s gemini_key=%s",
		out.Provider, redactIfSet(out.OpenAIKey), redactIfSet(out.GeminiKey))
	s.current = out
	return out, nil
}

// Save validates in and persists the provider selection, the active
// provider's key and model, and the default prompt. Nothing is written when
// validation fails; Current keeps its previous value when the backend fails.
func (s *Store) Save(ctx context.Context, in Settings) error {
	in = normalize(in)
	if err := Validate(in); err != nil {
		return err
	}

	values := map[string]string{
		KeyProvider:      string(in.Provider),
		KeyDefaultPrompt: in.DefaultPrompt,
	}
	if in.Provider == ProviderGemini {
		values[KeyGeminiKey] = in.GeminiKey
		values[KeyGeminiModel] = in.GeminiModel
	} else {
		values[KeyOpenAIKey] = in.OpenAIKey
		values[KeyOpenAIModel] = in.OpenAIModel
	}

	if err := s.kv.Set(ctx, values); err != nil {
		log.Printf("settings: save failed: %v", err)
		return fmt.Errorf("save settings: %w", err)
	}

	next := s.current
	next.Provider = in.Provider
	next.DefaultPrompt = in.DefaultPrompt
	if in.Provider == ProviderGemini {
		next.GeminiKey, next.GeminiModel = in.GeminiKey, in.GeminiModel
	} else {
		next.OpenAIKey, next.OpenAIModel = in.OpenAIKey, in.OpenAIModel
	}
	s.current = next
	log.Printf("settings: saved provider=%s key=%s", in.Provider, logutil.RedactKey(in.ActiveKey()))
	return nil
}

// ClearKeys removes both provider keys from storage.
func (s *Store) ClearKeys(ctx context.Context) error {
	if err := s.kv.Remove(ctx, KeyOpenAIKey, KeyGeminiKey); err != nil {
		log.Printf("settings: clear keys failed: %v", err)
		return fmt.Errorf("clear api keys: %w", err)
	}
	s.current.OpenAIKey = ""
	s.current.GeminiKey = ""
	log.Printf("settings: api keys cleared")
	return nil
}

func normalize(in Settings) Settings {
	in.OpenAIKey = strings.TrimSpace(in.OpenAIKey)
	in.GeminiKey = strings.TrimSpace(in.GeminiKey)
	in.OpenAIModel = strings.TrimSpace(in.OpenAIModel)
	in.GeminiModel = strings.TrimSpace(in.GeminiModel)
	in.DefaultPrompt = strings.TrimSpace(in.DefaultPrompt)
	return in
}

func redactIfSet(k string) string {
	if k == "" {
		return "<unset>"
	}
	return logutil.RedactKey(k)
}
