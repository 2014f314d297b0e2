// Package console turns typed commands into popup events and prints view
// changes as text. It is the terminal stand-in for the popup window.
package console

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gritshot/src/imagesource"
	"gritshot/src/messages"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrUsage          = errors.New("usage")
)

// Help lists the commands Parse understands plus the REPL-only ones.
const Help = `Commands:
  paste                 read an image from the clipboard
  paste-file <path>     paste an image file as if from Ctrl+V
  drop <path>           drop an image file
  open <path>           choose an image file
  capture [display]     capture a screen (-1 = all displays)
  clear                 remove the current image
  prompt <text>         set the prompt
  provider <name>       openai or gemini
  set <field> <value>   openai-key, openai-model, gemini-key, gemini-model, default-prompt
  save                  save settings
  clear-keys            delete stored API keys
  test                  test the provider connection
  send                  send the request
  copy                  copy the answer
  tab next|prev         switch tab
  show                  print the whole popup
  help                  this text
  quit                  exit`

var settableFields = map[string]bool{
	messages.FieldProvider:      true,
	messages.FieldPrompt:        true,
	messages.FieldOpenAIKey:     true,
	messages.FieldOpenAIModel:   true,
	messages.FieldGeminiKey:     true,
	messages.FieldGeminiModel:   true,
	messages.FieldDefaultPrompt: true,
}

var clickCommands = map[string]string{
	"paste":      messages.TargetPaste,
	"clear":      messages.TargetClear,
	"send":       messages.TargetSend,
	"save":       messages.TargetSave,
	"clear-keys": messages.TargetClearKeys,
	"test":       messages.TargetTest,
	"copy":       messages.TargetCopy,
}

// Parse converts one input line into an event. An empty line yields a nil
// message and no error. File commands read the file eagerly.
func Parse(line string) (messages.Message, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, nil
	}
	cmd, rest, _ := strings.Cut(line, " ")
	cmd = strings.ToLower(cmd)
	rest = strings.TrimSpace(rest)

	if target, ok := clickCommands[cmd]; ok {
		return messages.Click{Target: target}, nil
	}

	switch cmd {
	case "quit", "exit":
		return messages.Quit{}, nil
	case "capture":
		display := 0
		if rest != "" {
			n, err := strconv.Atoi(rest)
			if err != nil {
				return nil, fmt.Errorf("%w: capture [display]", ErrUsage)
			}
			display = n
		}
		return messages.Click{Target: messages.TargetCapture, Display: display}, nil
	case "drop", "open", "paste-file":
		if rest == "" {
			return nil, fmt.Errorf("%w: %s <path>", ErrUsage, cmd)
		}
		f, err := imagesource.FromPath(rest)
		if err != nil {
			return nil, err
		}
		switch cmd {
		case "drop":
			return messages.Drop{Files: []imagesource.File{f}}, nil
		case "open":
			return messages.FileChange{Files: []imagesource.File{f}}, nil
		}
		return messages.Paste{Items: []imagesource.Item{{MediaType: f.MediaType, Data: f.Data}}}, nil
	case "prompt":
		return messages.Change{Field: messages.FieldPrompt, Value: rest}, nil
	case "provider":
		if rest == "" {
			return nil, fmt.Errorf("%w: provider openai|gemini", ErrUsage)
		}
		return messages.Change{Field: messages.FieldProvider, Value: strings.ToLower(rest)}, nil
	case "set":
		field, value, _ := strings.Cut(rest, " ")
		field = strings.ToLower(field)
		if !settableFields[field] {
			return nil, fmt.Errorf("%w: set <field> <value>", ErrUsage)
		}
		return messages.Change{Field: field, Value: strings.TrimSpace(value)}, nil
	case "tab":
		switch strings.ToLower(rest) {
		case "next", "":
			return messages.KeyDown{Key: "ArrowRight"}, nil
		case "prev":
			return messages.KeyDown{Key: "ArrowLeft"}, nil
		}
		return nil, fmt.Errorf("%w: tab next|prev", ErrUsage)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, cmd)
}
