package popup

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"gritshot/src/imagesource"
	"gritshot/src/llm"
	"gritshot/src/logutil"
	"gritshot/src/settings"
)

type jobKind int

const (
	kindAnalyze jobKind = iota
	kindPing
)

// Job is one provider call prepared by StartSend or StartTest. Run may be
// executed on any goroutine; its result goes back through Finish.
type Job struct {
	kind     jobKind
	provider settings.Provider
	analyzer llm.Analyzer
	req      llm.Request
}

func (j *Job) Run(ctx context.Context) (string, error) {
	if j.kind == kindPing {
		return j.analyzer.Ping(ctx, j.req.APIKey, j.req.Model)
	}
	return j.analyzer.Analyze(ctx, j.req)
}

// Provider is the provider the job talks to.
func (j *Job) Provider() settings.Provider { return j.provider }

// StartSend moves the controller from idle to processing and prepares the
// analysis request. While a request is in flight it does nothing and
// returns ok=false; it also returns ok=false when the form is incomplete or
// the image cannot be encoded, in which case the controller is idle again.
func (c *Controller) StartSend() (job *Job, ok bool) {
	if c.isProcessing {
		log.Printf("popup: send ignored, request in flight")
		return nil, false
	}
	defer c.revalidate()

	s := c.view.formSettings()
	key := strings.TrimSpace(s.ActiveKey())
	if key == "" {
		c.setStatus(fmt.Sprintf("Please enter your %s API key in Settings", providerName(s.Provider)), LevelError)
		return nil, false
	}
	h := c.images.Current()
	if h == nil {
		c.setStatus("Please upload an image first", LevelError)
		return nil, false
	}
	prompt := strings.TrimSpace(c.view.Prompt)
	if prompt == "" {
		c.setStatus("Please enter a prompt", LevelError)
		return nil, false
	}
	analyzer, err := c.analyzer(s.Provider)
	if err != nil {
		c.setStatus(err.Error(), LevelError)
		return nil, false
	}

	c.isProcessing = true
	c.setStatus(fmt.Sprintf("Sending request to %s...", providerName(s.Provider)), LevelLoading)
	c.view.Answer = processingAnswer

	image, err := encode(h, analyzer.ImageEncoding())
	if err != nil {
		c.finishAnalyze("", err)
		return nil, false
	}

	log.Printf("popup: sending to %s model=%s key=%s", s.Provider, s.ActiveModel(), logutil.RedactKey(key))
	return &Job{
		kind:     kindAnalyze,
		provider: s.Provider,
		analyzer: analyzer,
		req: llm.Request{
			Prompt: prompt,
			Image:  image,
			APIKey: key,
			Model:  strings.TrimSpace(s.ActiveModel()),
		},
	}, true
}

// StartTest prepares a connection test with the key and model in the
// settings form. It shares the processing guard with StartSend.
func (c *Controller) StartTest() (job *Job, ok bool) {
	if c.isProcessing {
		log.Printf("popup: test ignored, request in flight")
		return nil, false
	}
	defer c.revalidate()

	s := c.view.formSettings()
	key := strings.TrimSpace(s.ActiveKey())
	if key == "" {
		c.setSettingsStatus(fmt.Sprintf("Please enter your %s API key.", providerName(s.Provider)), LevelError)
		return nil, false
	}
	analyzer, err := c.analyzer(s.Provider)
	if err != nil {
		c.setSettingsStatus(err.Error(), LevelError)
		return nil, false
	}

	c.isProcessing = true
	c.setSettingsStatus("Testing connection...", LevelLoading)
	c.view.Answer = ""
	return &Job{
		kind:     kindPing,
		provider: s.Provider,
		analyzer: analyzer,
		req:      llm.Request{APIKey: key, Model: strings.TrimSpace(s.ActiveModel())},
	}, true
}

// Finish applies the outcome of job and always returns the controller to idle.
func (c *Controller) Finish(job *Job, text string, err error) {
	if job != nil && job.kind == kindPing {
		c.finishPing(text, err)
		return
	}
	c.finishAnalyze(text, err)
}

func (c *Controller) finishAnalyze(text string, err error) {
	defer func() {
		c.isProcessing = false
		c.revalidate()
	}()
	if err != nil {
		log.Printf("popup: analysis error: %v", err)
		c.view.Answer = "Error: " + err.Error()
		c.setStatus("Analysis failed", LevelError)
		return
	}
	c.view.Answer = text
	c.setStatus("Analysis complete!", LevelSuccess)
}

func (c *Controller) finishPing(text string, err error) {
	defer func() {
		c.isProcessing = false
		c.revalidate()
	}()
	if err != nil {
		log.Printf("popup: connection test failed: %v", err)
		c.view.Answer = "Error: " + err.Error()
		c.setSettingsStatus("Connection failed", LevelError)
		return
	}
	c.view.Answer = text
	c.setSettingsStatus("Connection OK", LevelSuccess)
}

// Send runs a whole analysis on the calling goroutine.
func (c *Controller) Send(ctx context.Context) {
	job, ok := c.StartSend()
	if !ok {
		return
	}
	c.run(ctx, job)
}

// TestConnection runs a whole connection test on the calling goroutine.
func (c *Controller) TestConnection(ctx context.Context) {
	job, ok := c.StartTest()
	if !ok {
		return
	}
	c.run(ctx, job)
}

func (c *Controller) run(ctx context.Context, job *Job) {
	var (
		text string
		err  = errors.New("request aborted")
	)
	defer func() { c.Finish(job, text, err) }()
	text, err = job.Run(ctx)
}

func (c *Controller) analyzer(p settings.Provider) (llm.Analyzer, error) {
	if c.analyzers == nil {
		return nil, errors.New("No provider client configured")
	}
	return c.analyzers.For(p)
}

func encode(h *imagesource.Handle, enc llm.Encoding) (string, error) {
	if enc == llm.EncodingBase64 {
		return imagesource.ToBase64(h)
	}
	return imagesource.ToDataURL(h)
}
