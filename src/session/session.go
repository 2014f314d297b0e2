package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gritshot/src/clipboard"
	"gritshot/src/popup"
	"gritshot/src/settings"
)

// AcquireFunc loads the image into the controller, e.g. via Pick or PasteFromClipboard.
type AcquireFunc func(ctx context.Context, c *popup.Controller)

type ResultTarget interface {
	OnSuccess(text string) error
	OnFailure(err error) error
}

type Options struct {
	Controller *popup.Controller
	Acquire    AcquireFunc
	// Prompt overrides the stored default prompt when non-empty.
	Prompt string
	// Provider overrides the stored provider when non-empty.
	Provider settings.Provider
	Deadline time.Duration
	Target   ResultTarget
}

type Result struct {
	Text     string
	Provider settings.Provider
}

// Execute runs one analysis without an event loop: acquire, send, deliver.
func Execute(ctx context.Context, opts Options) (Result, error) {
	if opts.Controller == nil {
		return Result{}, errors.New("Controller is required")
	}
	if opts.Acquire == nil {
		return Result{}, errors.New("Acquire is required")
	}
	if opts.Target == nil {
		return Result{}, errors.New("Target is required")
	}
	c := opts.Controller

	if opts.Provider != "" {
		c.SetProvider(string(opts.Provider))
	}
	opts.Acquire(ctx, c)
	if c.View().PreviewURL == "" {
		err := statusError(c.View(), "no image acquired")
		_ = opts.Target.OnFailure(err)
		return Result{}, err
	}
	if opts.Prompt != "" {
		c.SetPrompt(opts.Prompt)
	}

	job, ok := c.StartSend()
	if !ok {
		err := startError(c.View())
		_ = opts.Target.OnFailure(err)
		return Result{}, err
	}

	deadline := opts.Deadline
	if deadline <= 0 {
		deadline = 60 * time.Second
	}
	jobCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	text, err := job.Run(jobCtx)
	c.Finish(job, text, err)
	if err != nil {
		_ = opts.Target.OnFailure(err)
		return Result{}, err
	}

	if err := opts.Target.OnSuccess(text); err != nil {
		_ = opts.Target.OnFailure(err)
		return Result{}, err
	}
	return Result{Text: text, Provider: job.Provider()}, nil
}

func statusError(v popup.View, fallback string) error {
	if v.Status != "" {
		return errors.New(v.Status)
	}
	return errors.New(fallback)
}

type ClipboardTarget struct {
	Writer clipboard.Writer
}

func (t ClipboardTarget) OnSuccess(text string) error {
	w := t.Writer
	if w == nil {
		w = clipboard.System{}
	}
	if err := w.WriteText(text); err != nil {
		return fmt.Errorf("clipboard error: %w", err)
	}
	return nil
}

func (ClipboardTarget) OnFailure(err error) error {
	return nil
}

type StdoutTarget struct {
	Writer io.Writer
}

func (t StdoutTarget) OnSuccess(text string) error {
	_, err := fmt.Fprintln(writerOrStdout(t.Writer), text)
	return err
}

func (t StdoutTarget) OnFailure(err error) error {
	return nil
}

// JSONTarget writes {"answer": ...} or {"error": ...} as one line.
type JSONTarget struct {
	Writer io.Writer
}

type jsonResult struct {
	Answer string `json:"answer,omitempty"`
	Error  string `json:"error,omitempty"`
}

func (t JSONTarget) OnSuccess(text string) error {
	return json.NewEncoder(writerOrStdout(t.Writer)).Encode(jsonResult{Answer: text})
}

func (t JSONTarget) OnFailure(err error) error {
	if err == nil {
		err = errors.New("unknown session error")
	}
	return json.NewEncoder(writerOrStdout(t.Writer)).Encode(jsonResult{Error: err.Error()})
}

// MultiTarget delivers to every target in order and stops at the first
// delivery error.
type MultiTarget []ResultTarget

func (m MultiTarget) OnSuccess(text string) error {
	for _, t := range m {
		if err := t.OnSuccess(text); err != nil {
			return err
		}
	}
	return nil
}

func (m MultiTarget) OnFailure(err error) error {
	var first error
	for _, t := range m {
		if ferr := t.OnFailure(err); ferr != nil && first == nil {
			first = ferr
		}
	}
	return first
}

func writerOrStdout(w io.Writer) io.Writer {
	if w == nil {
		return os.Stdout
	}
	return w
}

// startError reports why StartSend refused. An encoding failure has already
// been written to the answer, which is more specific than the status line.
func startError(v popup.View) error {
	if v.Status == "Analysis failed" {
		if msg, ok := strings.CutPrefix(v.Answer, "Error: "); ok {
			return errors.New(msg)
		}
	}
	return statusError(v, "request not started")
}
