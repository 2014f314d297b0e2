package console

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"gritshot/src/logutil"
	"gritshot/src/popup"
)

// Renderer prints what changed between two views. It is called from the
// event loop goroutine while Dump may be called from the REPL.
type Renderer struct {
	mu      sync.Mutex
	w       io.Writer
	last    popup.View
	started bool
}

func NewRenderer(w io.Writer) *Renderer {
	return &Renderer{w: w}
}

func (r *Renderer) Render(v popup.View) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.last
	r.last = v
	if !r.started {
		r.started = true
		fmt.Fprint(r.w, dump(v))
		return
	}

	if v.ActiveTab != prev.ActiveTab {
		fmt.Fprintf(r.w, "[tab] %s\n", v.ActiveTab)
	}
	if v.Dragging != prev.Dragging && v.Dragging {
		fmt.Fprintln(r.w, "[drop] release to load the image")
	}
	if v.Status != prev.Status && v.Status != "" {
		fmt.Fprintln(r.w, statusLine(v.StatusLevel, v.Status))
	}
	if v.PreviewURL != prev.PreviewURL {
		if v.PreviewURL == "" {
			fmt.Fprintln(r.w, "[image] none")
		} else {
			fmt.Fprintf(r.w, "[image] %s\n", v.PreviewURL)
		}
	}
	if v.Answer != prev.Answer {
		fmt.Fprintf(r.w, "answer:\n%s\n", indent(v.Answer))
	}
	if v.SettingsStatus != prev.SettingsStatus && v.SettingsStatus != "" {
		fmt.Fprintln(r.w, statusLine(v.SettingsStatusLevel, v.SettingsStatus))
	}
	if v.InvalidField != prev.InvalidField && v.InvalidField != "" {
		fmt.Fprintf(r.w, "[invalid] %s\n", v.InvalidField)
	}
	if v.ClearKeyStatus != prev.ClearKeyStatus && v.ClearKeyStatus != "" {
		fmt.Fprintln(r.w, v.ClearKeyStatus)
	}
}

// Dump returns the last rendered view in full.
func (r *Renderer) Dump() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return dump(r.last)
}

func dump(v popup.View) string {
	var b strings.Builder
	fmt.Fprintf(&b, "== %s ==\n", v.ActiveTab)
	if v.PreviewURL != "" {
		fmt.Fprintf(&b, "image:    %s\n", v.PreviewURL)
	} else {
		b.WriteString("image:    none\n")
	}
	fmt.Fprintf(&b, "prompt:   %s\n", v.Prompt)
	fmt.Fprintf(&b, "send:     %s%s\n", v.SendLabel, disabled(v.SendEnabled))
	if v.Status != "" {
		fmt.Fprintf(&b, "status:   %s\n", statusLine(v.StatusLevel, v.Status))
	}
	fmt.Fprintf(&b, "answer:\n%s\n", indent(v.Answer))
	fmt.Fprintf(&b, "provider: %s\n", v.Provider)
	fmt.Fprintf(&b, "openai:   %s (%s)\n", maskKey(v.OpenAIKey), v.OpenAIModel)
	fmt.Fprintf(&b, "gemini:   %s (%s)\n", maskKey(v.GeminiKey), v.GeminiModel)
	fmt.Fprintf(&b, "default:  %s\n", v.DefaultPrompt)
	fmt.Fprintf(&b, "save%s\n", disabled(v.SaveEnabled))
	if v.NotesVisible {
		b.WriteString("No API key stored yet. Create one at https://platform.openai.com/api-keys or https://aistudio.google.com/app/apikey\n")
	}
	if v.ClearKeyVisible {
		b.WriteString("clear-keys available\n")
	}
	return b.String()
}

func statusLine(level popup.Level, msg string) string {
	if level == popup.LevelNone {
		return msg
	}
	return fmt.Sprintf("[%s] %s", level, msg)
}

func disabled(enabled bool) string {
	if enabled {
		return ""
	}
	return " (disabled)"
}

func maskKey(k string) string {
	if k == "" {
		return "<none>"
	}
	return logutil.RedactKey(k)
}

func indent(s string) string {
	return "  " + strings.ReplaceAll(s, "\n", "\n  ")
}
