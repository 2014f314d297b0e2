package session

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"gritshot/src/clipboard"
	"gritshot/src/imagesource"
	"gritshot/src/kvstore"
	"gritshot/src/llm"
	"gritshot/src/popup"
	"gritshot/src/settings"
)

var pngBytes = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

type stubAnalyzer struct {
	text string
	err  error
	got  llm.Request
}

func (s *stubAnalyzer) Analyze(ctx context.Context, req llm.Request) (string, error) {
	s.got = req
	return s.text, s.err
}

func (s *stubAnalyzer) Ping(ctx context.Context, apiKey, model string) (string, error) {
	return "pong", nil
}

func (s *stubAnalyzer) ImageEncoding() llm.Encoding { return llm.EncodingBase64 }

type recordingTarget struct {
	success []string
	failure []error
	failOn  error
}

func (r *recordingTarget) OnSuccess(text string) error {
	r.success = append(r.success, text)
	return r.failOn
}

func (r *recordingTarget) OnFailure(err error) error {
	r.failure = append(r.failure, err)
	return nil
}

func newController(t *testing.T, a llm.Analyzer) *popup.Controller {
	t.Helper()
	kv := kvstore.NewMemory()
	_ = kv.Set(context.Background(), map[string]string{
		settings.KeyOpenAIKey: "sk-" + strings.Repeat("x", 50),
		settings.KeyGeminiKey: "AIzaSy" + strings.Repeat("x", 33),
	})
	c := popup.New(popup.Options{
		Settings:  settings.NewStore(kv),
		Images:    imagesource.NewSource(imagesource.Options{}),
		Analyzers: &llm.Analyzers{OpenAI: a, Gemini: a},
	})
	c.Load(context.Background())
	return c
}

func pickPNG(ctx context.Context, c *popup.Controller) {
	c.Pick([]imagesource.File{{Name: "a.png", MediaType: "image/png", Data: pngBytes}})
}

func TestExecuteSuccess(t *testing.T) {
	a := &stubAnalyzer{text: "an answer"}
	target := &recordingTarget{}
	res, err := Execute(context.Background(), Options{
		Controller: newController(t, a),
		Acquire:    pickPNG,
		Prompt:     "What is this?",
		Provider:   settings.ProviderGemini,
		Target:     target,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Text != "an answer" || res.Provider != settings.ProviderGemini {
		t.Errorf("result = %+v", res)
	}
	if a.got.Prompt != "What is this?" || a.got.Model != settings.DefaultGeminiModel {
		t.Errorf("request = %+v", a.got)
	}
	if len(target.success) != 1 || len(target.failure) != 0 {
		t.Errorf("target = %+v", target)
	}
}

func TestExecuteFailures(t *testing.T) {
	tests := []struct {
		name    string
		a       *stubAnalyzer
		acquire AcquireFunc
		failOn  error
		wantErr string
	}{
		{"not an image", &stubAnalyzer{}, func(ctx context.Context, c *popup.Controller) {
			c.Pick([]imagesource.File{{Name: "a.txt", MediaType: "text/plain", Data: []byte("x")}})
		}, nil, "Please select a valid image file (PNG, JPG)"},
		{"unencodable image", &stubAnalyzer{}, func(ctx context.Context, c *popup.Controller) {
			c.HandlePaste([]imagesource.Item{{MediaType: "image/png"}})
		}, nil, "Failed to convert image to data URL"},
		{"provider error", &stubAnalyzer{err: &llm.APIError{StatusCode: 500, Body: "boom"}}, pickPNG, nil, "API Error (500): boom"},
		{"delivery error", &stubAnalyzer{text: "ok"}, pickPNG, errors.New("clipboard error"), "clipboard error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := &recordingTarget{failOn: tt.failOn}
			c := newController(t, tt.a)
			_, err := Execute(context.Background(), Options{Controller: c, Acquire: tt.acquire, Target: target})
			if err == nil || err.Error() != tt.wantErr {
				t.Fatalf("err = %v, want %q", err, tt.wantErr)
			}
			if len(target.failure) != 1 {
				t.Errorf("OnFailure called %d times", len(target.failure))
			}
			if c.Processing() {
				t.Error("controller left processing")
			}
		})
	}
}

func TestExecuteRequiresOptions(t *testing.T) {
	if _, err := Execute(context.Background(), Options{}); err == nil {
		t.Error("expected error without controller")
	}
	c := newController(t, &stubAnalyzer{})
	if _, err := Execute(context.Background(), Options{Controller: c}); err == nil {
		t.Error("expected error without acquire")
	}
	if _, err := Execute(context.Background(), Options{Controller: c, Acquire: pickPNG}); err == nil {
		t.Error("expected error without target")
	}
}

func TestTargets(t *testing.T) {
	var out bytes.Buffer
	if err := (StdoutTarget{Writer: &out}).OnSuccess("text"); err != nil || out.String() != "text\n" {
		t.Errorf("stdout = %q, %v", out.String(), err)
	}

	out.Reset()
	j := JSONTarget{Writer: &out}
	_ = j.OnSuccess("hi")
	_ = j.OnFailure(errors.New("bad"))
	if out.String() != "{\"answer\":\"hi\"}\n{\"error\":\"bad\"}\n" {
		t.Errorf("json = %q", out.String())
	}

	clip := &clipboard.Static{}
	out.Reset()
	m := MultiTarget{StdoutTarget{Writer: &out}, ClipboardTarget{Writer: clip}}
	if err := m.OnSuccess("both"); err != nil {
		t.Fatal(err)
	}
	if out.String() != "both\n" || len(clip.Written) != 1 || clip.Written[0] != "both" {
		t.Errorf("multi delivery: out=%q clip=%v", out.String(), clip.Written)
	}

	clip.Err = clipboard.ErrUnavailable
	if err := (ClipboardTarget{Writer: clip}).OnSuccess("x"); !errors.Is(err, clipboard.ErrUnavailable) {
		t.Errorf("clipboard err = %v", err)
	}
}
