package runtimeinit

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"time"

	"gritshot/src/clipboard"
	"gritshot/src/config"
	"gritshot/src/imagesource"
	"gritshot/src/kvstore"
	"gritshot/src/llm"
	"gritshot/src/popup"
	"gritshot/src/screenshot"
	"gritshot/src/settings"
)

// Clipboard is the system clipboard as both reader and writer.
type Clipboard interface {
	clipboard.Reader
	clipboard.Writer
}

type Options struct {
	LoadOptions config.LoadOptions
	// SetupLogging runs right after the configuration is loaded.
	SetupLogging func(cfg *config.Config)
	Renderer     popup.Renderer
	Confirm      func(message string) bool
	// Clipboard and Screen default to the OS implementations.
	Clipboard Clipboard
	Screen    screenshot.Grabber
}

// Runtime is everything a frontend needs, wired together.
type Runtime struct {
	Config     *config.Config
	Store      kvstore.Store
	Settings   *settings.Store
	Images     *imagesource.Source
	Analyzers  *llm.Analyzers
	Controller *popup.Controller
}

func Bootstrap(ctx context.Context, opts Options) (*Runtime, error) {
	cfg, err := config.LoadWithOptions(opts.LoadOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if opts.SetupLogging != nil {
		opts.SetupLogging(cfg)
	}

	kv, err := kvstore.OpenSQLite(ctx, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open settings database %s: %w", cfg.DBPath, err)
	}

	clip := opts.Clipboard
	if clip == nil {
		if err := clipboard.Init(); err != nil {
			// Headless sessions still work with files; clipboard actions report the error.
			log.Printf("clipboard unavailable: %v", err)
		}
		clip = clipboard.System{}
	}
	screen := opts.Screen
	if screen == nil {
		screen = screenshot.System{}
	}

	store := settings.NewStore(kv)
	images := imagesource.NewSource(imagesource.Options{Clipboard: clip, Screen: screen})
	analyzers := llm.New(llm.Options{
		OpenAIBaseURL: cfg.OpenAIBaseURL,
		GeminiBaseURL: cfg.GeminiBaseURL,
		HTTPClient:    &http.Client{Timeout: time.Duration(cfg.RequestTimeoutSec) * time.Second},
	})
	ctrl := popup.New(popup.Options{
		Settings:  store,
		Images:    images,
		Analyzers: analyzers,
		Clipboard: clip,
		Renderer:  opts.Renderer,
		Confirm:   opts.Confirm,
	})
	ctrl.Load(ctx)

	log.Printf("GritShot initialized: db=%s timeout=%ds", filepath.Clean(cfg.DBPath), cfg.RequestTimeoutSec)
	return &Runtime{
		Config:     cfg,
		Store:      kv,
		Settings:   store,
		Images:     images,
		Analyzers:  analyzers,
		Controller: ctrl,
	}, nil
}

// Close releases the live image and the settings database.
func (r *Runtime) Close() error {
	if r == nil {
		return nil
	}
	r.Images.Clear()
	if live := r.Images.Registry().Live(); live > 0 {
		log.Printf("runtime: %d display URLs still live at shutdown", live)
	}
	return r.Store.Close()
}
