// Package form holds the predicates that enable the send and save buttons.
package form

import (
	"strings"

	"gritshot/src/settings"
)

// State is the subset of the popup inputs the predicates look at.
type State struct {
	HasImage bool
	Prompt   string
	Settings settings.Settings
}

// CanSend reports whether an image is present, the prompt is non-blank and
// the active provider has a key.
func CanSend(s State) bool {
	return s.HasImage &&
		strings.TrimSpace(s.Prompt) != "" &&
		strings.TrimSpace(s.Settings.ActiveKey()) != ""
}

// CanSaveSettings reports whether the default prompt, the active key and the
// active model are all non-blank.
func CanSaveSettings(s State) bool {
	return strings.TrimSpace(s.Settings.DefaultPrompt) != "" &&
		strings.TrimSpace(s.Settings.ActiveKey()) != "" &&
		strings.TrimSpace(s.Settings.ActiveModel()) != ""
}
