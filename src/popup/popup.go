// Package popup is the controller behind the popup: it owns the view model,
// reacts to UI events, and guards the single in-flight provider request.
package popup

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"gritshot/src/clipboard"
	"gritshot/src/form"
	"gritshot/src/imagesource"
	"gritshot/src/llm"
	"gritshot/src/messages"
	"gritshot/src/settings"
)

// ClearKeysConfirmation is the question asked before deleting stored keys.
const ClearKeysConfirmation = "Are you sure you want to delete your API Keys from local storage? This action cannot be undone."

var errNoAnswer = errors.New("No answer to copy")

type Options struct {
	Settings  *settings.Store
	Images    *imagesource.Source
	Analyzers *llm.Analyzers
	// Clipboard receives copied answers. Nil disables CopyAnswer.
	Clipboard clipboard.Writer
	Renderer  Renderer
	// Confirm asks the user a yes/no question. Nil answers yes.
	Confirm func(message string) bool
}

// Controller is not safe for concurrent use; the event loop is its only caller.
type Controller struct {
	store     *settings.Store
	images    *imagesource.Source
	analyzers *llm.Analyzers
	clip      clipboard.Writer
	renderer  Renderer
	confirm   func(string) bool

	view         View
	isProcessing bool
}

func New(opts Options) *Controller {
	c := &Controller{
		store:     opts.Settings,
		images:    opts.Images,
		analyzers: opts.Analyzers,
		clip:      opts.Clipboard,
		renderer:  opts.Renderer,
		confirm:   opts.Confirm,
	}
	if c.images == nil {
		c.images = imagesource.NewSource(imagesource.Options{})
	}
	if c.confirm == nil {
		c.confirm = func(string) bool { return true }
	}
	c.view = View{Answer: initialAnswer, SendLabel: labelSend}
	c.view.applySettings(settings.Defaults())
	c.view.Prompt = c.view.DefaultPrompt
	c.revalidate()
	return c
}

// View returns a copy of the current view model.
func (c *Controller) View() View { return c.view }

// Processing reports whether a provider request is in flight.
func (c *Controller) Processing() bool { return c.isProcessing }

func (c *Controller) setStatus(msg string, level Level) {
	c.view.Status = msg
	c.view.StatusLevel = level
}

func (c *Controller) setSettingsStatus(msg string, level Level) {
	c.view.SettingsStatus = msg
	c.view.SettingsStatusLevel = level
}

// revalidate recomputes everything derived from the inputs and redraws.
func (c *Controller) revalidate() {
	state := form.State{
		HasImage: c.images.Current() != nil,
		Prompt:   c.view.Prompt,
		Settings: c.view.formSettings(),
	}
	c.view.SendEnabled = !c.isProcessing && form.CanSend(state)
	c.view.SaveEnabled = form.CanSaveSettings(state)
	if c.isProcessing {
		c.view.SendLabel = labelProcessing
	} else {
		c.view.SendLabel = labelSend
	}
	if h := c.images.Current(); h != nil {
		c.view.PreviewURL = h.URL()
	} else {
		c.view.PreviewURL = ""
	}
	stored := c.store != nil && c.store.Current().HasAnyKey()
	c.view.ClearKeyVisible = stored
	c.view.NotesVisible = !stored
	if c.renderer != nil {
		c.renderer.Render(c.view)
	}
}

// Load reads the stored settings into the form. A backend failure is shown
// as a status and the defaults stay in place.
func (c *Controller) Load(ctx context.Context) {
	defer c.revalidate()
	if c.store == nil {
		return
	}
	s, err := c.store.Load(ctx)
	c.view.applySettings(s)
	c.view.Prompt = s.DefaultPrompt
	if err != nil {
		log.Printf("popup: %v", err)
		c.setStatus(settings.ErrLoad.Error(), LevelError)
	}
}

// PasteFromClipboard reads an image from the system clipboard.
func (c *Controller) PasteFromClipboard(ctx context.Context) {
	defer c.revalidate()
	c.setStatus("Reading clipboard...", LevelLoading)
	if _, err := c.images.FromClipboard(ctx); err != nil {
		log.Printf("popup: clipboard error: %v", err)
		if errors.Is(err, imagesource.ErrNoImage) {
			c.setStatus(imagesource.ErrNoImage.Error(), LevelWarning)
		} else {
			c.setStatus(imagesource.ErrPermission.Error(), LevelError)
		}
		return
	}
	c.setStatus("Image loaded from clipboard", LevelSuccess)
}

func (c *Controller) DragEnter() {
	c.view.Dragging = true
	c.revalidate()
}

func (c *Controller) DragOver() {
	c.view.Dragging = true
	c.revalidate()
}

func (c *Controller) DragLeave() {
	c.view.Dragging = false
	c.revalidate()
}

// Drop adopts the first dropped file.
func (c *Controller) Drop(files []imagesource.File) {
	defer c.revalidate()
	c.view.Dragging = false
	if _, err := c.images.FromDrop(files); err != nil {
		c.setStatus(err.Error(), LevelError)
		return
	}
	c.setStatus("Image loaded from file drop", LevelSuccess)
}

// Pick adopts the first file chosen in the file input. An empty selection
// (a cancelled dialog) changes nothing.
func (c *Controller) Pick(files []imagesource.File) {
	if len(files) == 0 {
		return
	}
	defer c.revalidate()
	if _, err := c.images.FromPick(files); err != nil {
		c.setStatus(err.Error(), LevelError)
		return
	}
	c.setStatus("Image loaded from file browser", LevelSuccess)
}

// HandlePaste adopts the first image of a paste event. It reports whether
// the event was consumed; events without an image leave everything as is.
func (c *Controller) HandlePaste(items []imagesource.Item) bool {
	if _, ok := c.images.FromPasteEvent(items); !ok {
		return false
	}
	c.setStatus("Image pasted successfully", LevelSuccess)
	c.revalidate()
	return true
}

// CaptureScreen grabs a display (-1 for all displays) as the current image.
func (c *Controller) CaptureScreen(display int) {
	defer c.revalidate()
	if _, err := c.images.FromScreen(display); err != nil {
		log.Printf("popup: capture error: %v", err)
		c.setStatus(err.Error(), LevelError)
		return
	}
	c.setStatus("Screen captured", LevelSuccess)
}

// ClearImage releases the current image and resets the answer.
func (c *Controller) ClearImage() {
	defer c.revalidate()
	c.images.Clear()
	c.view.Answer = initialAnswer
	c.setStatus("Cleared", LevelSuccess)
}

func (c *Controller) SetPrompt(v string) {
	c.view.Prompt = v
	c.revalidate()
}

// SetProvider switches the active provider in the settings form.
func (c *Controller) SetProvider(v string) {
	defer c.revalidate()
	p, err := settings.ParseProvider(v)
	if err != nil {
		c.setSettingsStatus(err.Error(), LevelError)
		return
	}
	c.view.Provider = p
	c.view.InvalidField = ""
}

// SetField updates one input by its messages.Field* name.
func (c *Controller) SetField(field, value string) {
	switch field {
	case messages.FieldProvider:
		c.SetProvider(value)
		return
	case messages.FieldPrompt:
		c.SetPrompt(value)
		return
	case messages.FieldOpenAIKey:
		c.view.OpenAIKey = value
	case messages.FieldOpenAIModel:
		c.view.OpenAIModel = value
	case messages.FieldGeminiKey:
		c.view.GeminiKey = value
	case messages.FieldGeminiModel:
		c.view.GeminiModel = value
	case messages.FieldDefaultPrompt:
		c.view.DefaultPrompt = value
	default:
		log.Printf("popup: ignoring change of unknown field %q", field)
		return
	}
	c.view.InvalidField = ""
	c.revalidate()
}

// SaveSettings validates and persists the settings form.
func (c *Controller) SaveSettings(ctx context.Context) {
	defer c.revalidate()
	if c.store == nil {
		c.setSettingsStatus("Error saving settings", LevelError)
		return
	}
	err := c.store.Save(ctx, c.view.formSettings())
	var verr *settings.ValidationError
	switch {
	case errors.As(err, &verr):
		c.view.InvalidField = verr.Field
		c.setSettingsStatus(verr.Message, LevelError)
		return
	case err != nil:
		log.Printf("popup: error saving settings: %v", err)
		c.setSettingsStatus("Error saving settings", LevelError)
		return
	}

	c.view.InvalidField = ""
	c.view.applySettings(c.store.Current())
	c.setSettingsStatus("Settings saved successfully!", LevelSuccess)
	if strings.TrimSpace(c.view.Prompt) == "" {
		c.view.Prompt = c.view.DefaultPrompt
	}
}

// ClearKeys deletes both stored API keys after confirmation.
func (c *Controller) ClearKeys(ctx context.Context) {
	if !c.confirm(ClearKeysConfirmation) {
		return
	}
	defer c.revalidate()
	if c.store == nil {
		c.view.ClearKeyStatus = "Error deleting API Keys"
		return
	}
	if err := c.store.ClearKeys(ctx); err != nil {
		log.Printf("popup: error clearing API keys: %v", err)
		c.view.ClearKeyStatus = "Error deleting API Keys"
		return
	}
	c.view.OpenAIKey = ""
	c.view.GeminiKey = ""
	c.view.ClearKeyStatus = "All API Keys deleted successfully"
}

// KeyDown handles keyboard shortcuts. Arrow keys move between tabs with
// wrap-around. It returns true when the key asks for a send (Ctrl or Meta
// with Enter); the caller decides how to run it.
func (c *Controller) KeyDown(key string, ctrl, meta bool) (send bool) {
	switch key {
	case "Enter":
		return ctrl || meta
	case "ArrowRight":
		c.view.ActiveTab = (c.view.ActiveTab + 1) % tabCount
	case "ArrowLeft":
		c.view.ActiveTab = (c.view.ActiveTab + tabCount - 1) % tabCount
	default:
		return false
	}
	c.revalidate()
	return false
}

// SelectTab activates t.
func (c *Controller) SelectTab(t Tab) {
	if t < 0 || t >= tabCount {
		return
	}
	c.view.ActiveTab = t
	c.revalidate()
}

// CopyAnswer places the current answer on the system clipboard.
func (c *Controller) CopyAnswer() {
	defer c.revalidate()
	if c.clip == nil {
		c.setStatus("Failed to copy answer", LevelError)
		return
	}
	answer := c.view.Answer
	if answer == "" || answer == initialAnswer || c.isProcessing {
		c.setStatus(errNoAnswer.Error(), LevelWarning)
		return
	}
	if err := c.clip.WriteText(answer); err != nil {
		log.Printf("popup: copy failed: %v", err)
		c.setStatus("Failed to copy answer", LevelError)
		return
	}
	c.setStatus("Answer copied to clipboard", LevelSuccess)
}

func (c *Controller) String() string {
	return fmt.Sprintf("popup(tab=%s processing=%v image=%v)", c.view.ActiveTab, c.isProcessing, c.images.Current() != nil)
}
