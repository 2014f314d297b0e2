package messages

import (
	"gritshot/src/imagesource"
)

// Message is the base interface for all UI events delivered to the event loop
type Message interface {
	Type() string
}

// MessageType constants for type identification
const (
	TypeClick      = "Click"
	TypeDragEnter  = "DragEnter"
	TypeDragOver   = "DragOver"
	TypeDragLeave  = "DragLeave"
	TypeDrop       = "Drop"
	TypePaste      = "Paste"
	TypeFileChange = "FileChange"
	TypeKeyDown    = "KeyDown"
	TypeChange     = "Change"
	TypeQuit       = "Quit"
)

// Click targets
const (
	TargetPaste     = "paste"
	TargetClear     = "clear"
	TargetSend      = "send"
	TargetSave      = "save"
	TargetClearKeys = "clear-keys"
	TargetTest      = "test"
	TargetCopy      = "copy"
	TargetCapture   = "capture"
)

// Change fields
const (
	FieldProvider      = "provider"
	FieldPrompt        = "prompt"
	FieldOpenAIKey     = "openai-key"
	FieldOpenAIModel   = "openai-model"
	FieldGeminiKey     = "gemini-key"
	FieldGeminiModel   = "gemini-model"
	FieldDefaultPrompt = "default-prompt"
)

// Click - a button was activated
type Click struct {
	Target string
	// Display is the screen index for TargetCapture (-1 = all displays)
	Display int
}

func (m Click) Type() string { return TypeClick }

type DragEnter struct{}

func (m DragEnter) Type() string { return TypeDragEnter }

type DragOver struct{}

func (m DragOver) Type() string { return TypeDragOver }

type DragLeave struct{}

func (m DragLeave) Type() string { return TypeDragLeave }

// Drop - files released over the drop zone
type Drop struct {
	Files []imagesource.File
}

func (m Drop) Type() string { return TypeDrop }

// Paste - a paste event anywhere in the popup
type Paste struct {
	Items []imagesource.Item
}

func (m Paste) Type() string { return TypePaste }

// FileChange - files chosen through the file input
type FileChange struct {
	Files []imagesource.File
}

func (m FileChange) Type() string { return TypeFileChange }

// KeyDown - a key press with its modifier state
type KeyDown struct {
	Key  string // e.g., "Enter", "ArrowLeft"
	Ctrl bool
	Meta bool
}

func (m KeyDown) Type() string { return TypeKeyDown }

// Change - a select or text input changed value
type Change struct {
	Field string
	Value string
}

func (m Change) Type() string { return TypeChange }

// Quit - stop the event loop
type Quit struct{}

func (m Quit) Type() string { return TypeQuit }
