package console

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"gritshot/src/imagesource"
	"gritshot/src/messages"
	"gritshot/src/popup"
)

var pngBytes = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func writePNG(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shot.png")
	if err := os.WriteFile(path, pngBytes, 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParse(t *testing.T) {
	tests := []struct {
		line string
		want messages.Message
	}{
		{"", nil},
		{"   ", nil},
		{"paste", messages.Click{Target: messages.TargetPaste}},
		{"SEND", messages.Click{Target: messages.TargetSend}},
		{"clear-keys", messages.Click{Target: messages.TargetClearKeys}},
		{"capture", messages.Click{Target: messages.TargetCapture}},
		{"capture -1", messages.Click{Target: messages.TargetCapture, Display: -1}},
		{"prompt What is in  this image?", messages.Change{Field: messages.FieldPrompt, Value: "What is in  this image?"}},
		{"provider Gemini", messages.Change{Field: messages.FieldProvider, Value: "gemini"}},
		{"set openai-model gpt-4o", messages.Change{Field: messages.FieldOpenAIModel, Value: "gpt-4o"}},
		{"set gemini-key", messages.Change{Field: messages.FieldGeminiKey, Value: ""}},
		{"tab", messages.KeyDown{Key: "ArrowRight"}},
		{"tab prev", messages.KeyDown{Key: "ArrowLeft"}},
		{"quit", messages.Quit{}},
	}
	for _, tt := range tests {
		got, err := Parse(tt.line)
		if err != nil {
			t.Errorf("Parse(%q) error: %v", tt.line, err)
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Parse(%q) = %#v, want %#v", tt.line, got, tt.want)
		}
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		line string
		want error
	}{
		{"dance", ErrUnknownCommand},
		{"capture first", ErrUsage},
		{"drop", ErrUsage},
		{"provider", ErrUsage},
		{"set colour blue", ErrUsage},
		{"tab up", ErrUsage},
	}
	for _, tt := range tests {
		if _, err := Parse(tt.line); !errors.Is(err, tt.want) {
			t.Errorf("Parse(%q) err = %v, want %v", tt.line, err, tt.want)
		}
	}
	if _, err := Parse("drop /does/not/exist.png"); err == nil {
		t.Error("missing file should fail")
	}
}

func TestParseFileCommands(t *testing.T) {
	path := writePNG(t)

	m, err := Parse("drop " + path)
	if err != nil {
		t.Fatal(err)
	}
	drop, ok := m.(messages.Drop)
	if !ok || len(drop.Files) != 1 || drop.Files[0].MediaType != "image/png" || drop.Files[0].Name != "shot.png" {
		t.Errorf("drop = %#v", m)
	}

	m, _ = Parse("open " + path)
	if fc, ok := m.(messages.FileChange); !ok || len(fc.Files) != 1 {
		t.Errorf("open = %#v", m)
	}

	m, _ = Parse("paste-file " + path)
	p, ok := m.(messages.Paste)
	if !ok || !reflect.DeepEqual(p.Items, []imagesource.Item{{MediaType: "image/png", Data: pngBytes}}) {
		t.Errorf("paste-file = %#v", m)
	}
}

func TestRendererPrintsChanges(t *testing.T) {
	var out bytes.Buffer
	r := NewRenderer(&out)

	v := popup.View{Answer: "No request has been made yet.", SendLabel: "Send Request", OpenAIKey: "sk-abcdefghijklmnop"}
	r.Render(v)
	first := out.String()
	if !strings.Contains(first, "== prompt ==") || !strings.Contains(first, "sk-a...mnop") {
		t.Errorf("initial dump = %q", first)
	}
	if strings.Contains(first, "abcdefghijkl") {
		t.Error("key printed in clear")
	}

	out.Reset()
	v.Status, v.StatusLevel = "Image loaded from file browser", popup.LevelSuccess
	v.PreviewURL = "blob:gritshot/1"
	r.Render(v)
	if got := out.String(); got != "[success] Image loaded from file browser\n[image] blob:gritshot/1\n" {
		t.Errorf("changes = %q", got)
	}

	out.Reset()
	r.Render(v)
	if out.Len() != 0 {
		t.Errorf("unchanged view printed %q", out.String())
	}

	out.Reset()
	v.Answer = "line one\nline two"
	v.ActiveTab = popup.TabSettings
	r.Render(v)
	if got := out.String(); got != "[tab] settings\nanswer:\n  line one\n  line two\n" {
		t.Errorf("answer = %q", got)
	}
	if !strings.Contains(r.Dump(), "== settings ==") {
		t.Errorf("dump = %q", r.Dump())
	}
}

type scriptReader struct {
	lines []string
	delay time.Duration
}

func (s *scriptReader) Readline() (string, error) {
	if len(s.lines) == 0 {
		return "", io.EOF
	}
	time.Sleep(s.delay)
	line := s.lines[0]
	s.lines = s.lines[1:]
	return line, nil
}

func drain(events chan messages.Message) []string {
	var types []string
	for {
		select {
		case m := <-events:
			types = append(types, m.Type())
		default:
			return types
		}
	}
}

func TestREPLEmitsEvents(t *testing.T) {
	path := writePNG(t)
	events := make(chan messages.Message, 16)
	var out bytes.Buffer
	r := &REPL{
		In:     &scriptReader{lines: []string{"help", "bogus", "drop " + path, "send", "quit", "copy"}},
		Out:    &out,
		Events: events,
	}
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []string{messages.TypeDragEnter, messages.TypeDrop, messages.TypeClick, messages.TypeQuit}
	if got := drain(events); !reflect.DeepEqual(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}
	if !strings.Contains(out.String(), "Commands:") || !strings.Contains(out.String(), "unknown command: bogus") {
		t.Errorf("output = %q", out.String())
	}
}

func TestREPLAnswersConfirm(t *testing.T) {
	events := make(chan messages.Message, 16)
	p := NewPrompter()
	defer p.Close()
	in := &scriptReader{lines: []string{"yes", "send"}, delay: 50 * time.Millisecond}
	var out bytes.Buffer
	r := &REPL{In: in, Out: &out, Events: events, Prompter: p}

	answer := make(chan bool, 1)
	go func() { answer <- p.Confirm(popup.ClearKeysConfirmation) }()

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	select {
	case ok := <-answer:
		if !ok {
			t.Error("yes should confirm")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Confirm never answered")
	}
	// The answer line is consumed and not parsed as a command.
	if got := drain(events); !reflect.DeepEqual(got, []string{messages.TypeClick, messages.TypeQuit}) {
		t.Errorf("events = %v", got)
	}
}

func TestPrompterClosed(t *testing.T) {
	p := NewPrompter()
	p.Close()
	p.Close()
	if p.Confirm("sure?") {
		t.Error("closed prompter should answer no")
	}
}
