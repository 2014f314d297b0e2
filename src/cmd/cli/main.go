package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"gritshot/src/config"
	"gritshot/src/imagesource"
	"gritshot/src/logutil"
	"gritshot/src/messages"
	"gritshot/src/popup"
	"gritshot/src/runtimeinit"
	"gritshot/src/session"
	"gritshot/src/settings"
)

type cliOptions struct {
	dbPath     string
	jsonOutput bool
	verbose    bool

	// Overridden in tests.
	clipboard runtimeinit.Clipboard
	stdin     io.Reader
}

type analyzeOptions struct {
	filePath      string
	prompt        string
	provider      string
	fromClipboard bool
	display       int
	capture       bool
	copy          bool
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return runWithArgs(normalizeLegacyArgs(os.Args))
}

func runWithArgs(args []string) error {
	if len(args) == 0 {
		args = []string{"gritshot-cli"}
	}
	opts := &cliOptions{}
	cmd := newRootCmd(opts)
	cmd.SetArgs(args[1:])
	return cmd.Execute()
}

func newRootCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "gritshot-cli",
		Short:         "Ask OpenAI or Gemini about an image from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.dbPath, "db", "", "Path to the settings database")
	cmd.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "Output results as JSON")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output to stderr")

	cmd.AddCommand(newAnalyzeCmd(opts), newSettingsCmd(opts), newPingCmd(opts))
	return cmd
}

func newAnalyzeCmd(opts *cliOptions) *cobra.Command {
	a := &analyzeOptions{}
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Send one image with a prompt and print the answer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sources := 0
			for _, set := range []bool{a.filePath != "", a.fromClipboard, a.capture} {
				if set {
					sources++
				}
			}
			if sources != 1 {
				return errors.New("exactly one of --file, --clipboard or --screen is required")
			}
			return runAnalyze(cmd.Context(), *opts, *a, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&a.filePath, "file", "", "Path to an image file (use '-' for stdin)")
	cmd.Flags().BoolVar(&a.fromClipboard, "clipboard", false, "Read the image from the clipboard")
	cmd.Flags().IntVar(&a.display, "screen", 0, "Capture this display (-1 = all displays)")
	cmd.Flags().StringVar(&a.prompt, "prompt", "", "Prompt (defaults to the stored default prompt)")
	cmd.Flags().StringVar(&a.provider, "provider", "", "openai or gemini (defaults to the stored provider)")
	cmd.Flags().BoolVar(&a.copy, "copy", false, "Also copy the answer to the clipboard")
	cmd.PreRun = func(cmd *cobra.Command, args []string) {
		a.capture = cmd.Flags().Changed("screen")
	}
	return cmd
}

func newSettingsCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change stored settings",
	}
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the stored settings with keys masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSettingsShow(cmd.Context(), *opts, cmd.OutOrStdout())
		},
	}
	set := &cobra.Command{
		Use:   "set <field> <value> [<field> <value>...]",
		Short: "Change settings and save them together",
		Long: "Fields: " + strings.Join([]string{
			messages.FieldProvider, messages.FieldOpenAIKey, messages.FieldOpenAIModel,
			messages.FieldGeminiKey, messages.FieldGeminiModel, messages.FieldDefaultPrompt,
		}, ", "),
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 || len(args)%2 != 0 {
				return fmt.Errorf("expected <field> <value> pairs, got %d args", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSettingsSet(cmd.Context(), *opts, args, cmd.OutOrStdout())
		},
	}
	var yes bool
	clearKeys := &cobra.Command{
		Use:   "clear-keys",
		Short: "Delete both stored API keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("%s Re-run with --yes to confirm.", popup.ClearKeysConfirmation)
			}
			return runClearKeys(cmd.Context(), *opts, cmd.OutOrStdout())
		},
	}
	clearKeys.Flags().BoolVar(&yes, "yes", false, "Confirm deletion")
	cmd.AddCommand(show, set, clearKeys)
	return cmd
}

func newPingCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Test the connection to the stored provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPing(cmd.Context(), *opts, cmd.OutOrStdout())
		},
	}
}

func normalizeLegacyArgs(args []string) []string {
	if len(args) == 0 {
		return args
	}
	normalized := make([]string, len(args))
	copy(normalized, args)
	for i := 1; i < len(normalized); i++ {
		for _, name := range []string{"file", "json", "verbose", "db", "prompt", "provider"} {
			arg := normalized[i]
			switch {
			case arg == "-"+name:
				normalized[i] = "--" + name
			case strings.HasPrefix(arg, "-"+name+"="):
				normalized[i] = "-" + arg
			}
		}
	}
	return normalized
}

// openRuntime configures logging first so bootstrap messages follow --verbose.
func openRuntime(ctx context.Context, opts cliOptions) (*runtimeinit.Runtime, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := runtimeinit.Bootstrap(ctx, runtimeinit.Options{
		LoadOptions: config.LoadOptions{DBPathOverride: opts.dbPath, VerboseLogging: opts.verbose},
		SetupLogging: func(cfg *config.Config) {
			logutil.Setup(logutil.Options{Verbose: cfg.Verbose})
			if cfg.Verbose {
				fmt.Fprintf(os.Stderr, "[verbose] Settings database: %s\n", cfg.DBPath)
			}
		},
		Clipboard: opts.clipboard,
	})
	if err != nil {
		return nil, err
	}
	if status := rt.Controller.View().Status; status == settings.ErrLoad.Error() {
		rt.Close()
		return nil, settings.ErrLoad
	}
	return rt, nil
}

func runAnalyze(ctx context.Context, opts cliOptions, a analyzeOptions, out io.Writer) error {
	rt, err := openRuntime(ctx, opts)
	if err != nil {
		return err
	}
	defer rt.Close()

	var provider settings.Provider
	if a.provider != "" {
		if provider, err = settings.ParseProvider(a.provider); err != nil {
			return err
		}
	}

	acquire, err := acquireFunc(opts, a)
	if err != nil {
		return err
	}

	var target session.ResultTarget = session.StdoutTarget{Writer: out}
	if opts.jsonOutput {
		target = session.JSONTarget{Writer: out}
	}
	if a.copy {
		target = session.MultiTarget{target, session.ClipboardTarget{Writer: opts.clipboard}}
	}

	start := time.Now()
	res, err := session.Execute(ctx, session.Options{
		Controller: rt.Controller,
		Acquire:    acquire,
		Prompt:     a.prompt,
		Provider:   provider,
		Deadline:   time.Duration(rt.Config.RequestTimeoutSec) * time.Second,
		Target:     target,
	})
	if err != nil {
		return err
	}
	log.Printf("cli: %s answered %d characters in %v", res.Provider, len(res.Text), time.Since(start))
	return nil
}

func acquireFunc(opts cliOptions, a analyzeOptions) (session.AcquireFunc, error) {
	switch {
	case a.fromClipboard:
		return func(ctx context.Context, c *popup.Controller) { c.PasteFromClipboard(ctx) }, nil
	case a.capture:
		display := a.display
		return func(ctx context.Context, c *popup.Controller) { c.CaptureScreen(display) }, nil
	case a.filePath == "-":
		in := opts.stdin
		if in == nil {
			in = os.Stdin
		}
		data, err := io.ReadAll(io.LimitReader(in, imagesource.MaxImageSize+1))
		if err != nil {
			return nil, fmt.Errorf("failed to read from stdin: %w", err)
		}
		if len(data) > imagesource.MaxImageSize {
			return nil, imagesource.ErrTooLarge
		}
		file := imagesource.File{Name: "stdin", Data: data}
		return func(ctx context.Context, c *popup.Controller) { c.Pick([]imagesource.File{file}) }, nil
	}
	file, err := imagesource.FromPath(a.filePath)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, c *popup.Controller) { c.Pick([]imagesource.File{file}) }, nil
}

type settingsOutput struct {
	Provider      settings.Provider `json:"provider"`
	OpenAIKey     string            `json:"openai_key"`
	OpenAIModel   string            `json:"openai_model"`
	GeminiKey     string            `json:"gemini_key"`
	GeminiModel   string            `json:"gemini_model"`
	DefaultPrompt string            `json:"default_prompt"`
}

func maskKey(k string) string {
	if k == "" {
		return ""
	}
	return logutil.RedactKey(k)
}

func runSettingsShow(ctx context.Context, opts cliOptions, out io.Writer) error {
	rt, err := openRuntime(ctx, opts)
	if err != nil {
		return err
	}
	defer rt.Close()

	s := rt.Settings.Current()
	o := settingsOutput{
		Provider:      s.Provider,
		OpenAIKey:     maskKey(s.OpenAIKey),
		OpenAIModel:   s.OpenAIModel,
		GeminiKey:     maskKey(s.GeminiKey),
		GeminiModel:   s.GeminiModel,
		DefaultPrompt: s.DefaultPrompt,
	}
	if opts.jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(o)
	}
	fmt.Fprintf(out, "provider:       %s\n", o.Provider)
	fmt.Fprintf(out, "openai key:     %s\n", o.OpenAIKey)
	fmt.Fprintf(out, "openai model:   %s\n", o.OpenAIModel)
	fmt.Fprintf(out, "gemini key:     %s\n", o.GeminiKey)
	fmt.Fprintf(out, "gemini model:   %s\n", o.GeminiModel)
	fmt.Fprintf(out, "default prompt: %s\n", o.DefaultPrompt)
	return nil
}

// runSettingsSet applies every field/value pair and saves once, so a provider
// switch and its key land in the same validated save.
func runSettingsSet(ctx context.Context, opts cliOptions, pairs []string, out io.Writer) error {
	for i := 0; i < len(pairs); i += 2 {
		switch pairs[i] {
		case messages.FieldProvider, messages.FieldOpenAIKey, messages.FieldOpenAIModel,
			messages.FieldGeminiKey, messages.FieldGeminiModel, messages.FieldDefaultPrompt:
		default:
			return fmt.Errorf("unknown settings field %q", pairs[i])
		}
	}

	rt, err := openRuntime(ctx, opts)
	if err != nil {
		return err
	}
	defer rt.Close()

	c := rt.Controller
	for i := 0; i < len(pairs); i += 2 {
		c.SetField(pairs[i], pairs[i+1])
		if v := c.View(); v.SettingsStatusLevel == popup.LevelError {
			return errors.New(v.SettingsStatus)
		}
	}
	c.SaveSettings(ctx)
	v := c.View()
	if v.SettingsStatusLevel != popup.LevelSuccess {
		return errors.New(v.SettingsStatus)
	}
	fmt.Fprintln(out, v.SettingsStatus)
	return nil
}

func runClearKeys(ctx context.Context, opts cliOptions, out io.Writer) error {
	rt, err := openRuntime(ctx, opts)
	if err != nil {
		return err
	}
	defer rt.Close()

	rt.Controller.ClearKeys(ctx)
	status := rt.Controller.View().ClearKeyStatus
	if rt.Settings.Current().HasAnyKey() {
		return errors.New(status)
	}
	fmt.Fprintln(out, status)
	return nil
}

func runPing(ctx context.Context, opts cliOptions, out io.Writer) error {
	rt, err := openRuntime(ctx, opts)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, cancel := context.WithTimeout(ctx, time.Duration(rt.Config.RequestTimeoutSec)*time.Second)
	defer cancel()
	c := rt.Controller
	c.TestConnection(ctx)
	v := c.View()
	if v.SettingsStatusLevel != popup.LevelSuccess {
		if strings.HasPrefix(v.Answer, "Error: ") {
			return fmt.Errorf("%s: %s", v.SettingsStatus, strings.TrimPrefix(v.Answer, "Error: "))
		}
		return errors.New(v.SettingsStatus)
	}
	if opts.jsonOutput {
		return json.NewEncoder(out).Encode(map[string]string{"provider": string(v.Provider), "reply": v.Answer})
	}
	fmt.Fprintf(out, "%s (%s): %s\n", v.SettingsStatus, v.Provider, v.Answer)
	return nil
}
