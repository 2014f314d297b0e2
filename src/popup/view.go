package popup

import "gritshot/src/settings"

type Level string

const (
	LevelNone    Level = ""
	LevelInfo    Level = "info"
	LevelLoading Level = "loading"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

type Tab int

const (
	TabPrompt Tab = iota
	TabSettings
	tabCount
)

func (t Tab) String() string {
	if t == TabSettings {
		return "settings"
	}
	return "prompt"
}

const (
	initialAnswer    = "No request has been made yet."
	processingAnswer = "Processing..."
	labelSend        = "Send Request"
	labelProcessing  = "Processing..."
)

// View is everything a frontend needs to draw the popup.
type View struct {
	ActiveTab Tab

	// Prompt tab.
	Prompt      string
	PreviewURL  string
	Dragging    bool
	Status      string
	StatusLevel Level
	Answer      string
	SendLabel   string
	SendEnabled bool

	// Settings tab inputs.
	Provider      settings.Provider
	OpenAIKey     string
	OpenAIModel   string
	GeminiKey     string
	GeminiModel   string
	DefaultPrompt string
	// InvalidField is the settings key of the input that failed validation.
	InvalidField string

	SaveEnabled         bool
	SettingsStatus      string
	SettingsStatusLevel Level
	ClearKeyVisible     bool
	ClearKeyStatus      string
	// NotesVisible shows the "how to get an API key" notes while no key is stored.
	NotesVisible bool
}

// Renderer draws a View. Controllers call it after every handled event.
type Renderer interface {
	Render(v View)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(v View)

func (f RendererFunc) Render(v View) { f(v) }

func (v View) formSettings() settings.Settings {
	return settings.Settings{
		Provider:      v.Provider,
		OpenAIKey:     v.OpenAIKey,
		OpenAIModel:   v.OpenAIModel,
		GeminiKey:     v.GeminiKey,
		GeminiModel:   v.GeminiModel,
		DefaultPrompt: v.DefaultPrompt,
	}
}

func (v *View) applySettings(s settings.Settings) {
	v.Provider = s.Provider
	v.OpenAIKey = s.OpenAIKey
	v.OpenAIModel = s.OpenAIModel
	v.GeminiKey = s.GeminiKey
	v.GeminiModel = s.GeminiModel
	v.DefaultPrompt = s.DefaultPrompt
}

func providerName(p settings.Provider) string {
	if p == settings.ProviderGemini {
		return "Gemini"
	}
	return "OpenAI"
}
