package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"gritshot/src/config"
	"gritshot/src/console"
	"gritshot/src/eventloop"
	"gritshot/src/logutil"
	"gritshot/src/messages"
	"gritshot/src/runtimeinit"
)

const (
	promptIdle = "gritshot> "
	promptBusy = "gritshot (processing)> "
)

type mainOptions struct {
	dbPath    string
	verbose   bool
	autoPaste bool
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
		args = []string{"gritshot"}
	}
	opts := &mainOptions{}
	cmd := newRootCmd(opts)
	cmd.SetArgs(args[1:])
	return cmd.Execute()
}

func newRootCmd(opts *mainOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "gritshot",
		Short:         "Ask a vision model about an image, interactively",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithOptions(cmd.Context(), *opts)
		},
	}
	cmd.Flags().StringVar(&opts.dbPath, "db", "", "Path to the settings database")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log to stderr")
	cmd.Flags().BoolVar(&opts.autoPaste, "auto-paste", false, "Read an image from the clipboard on start")
	return cmd
}

// normalizeLegacyArgs maps single-dash long flags to their GNU form.
func normalizeLegacyArgs(args []string) []string {
	normalized := make([]string, len(args))
	copy(normalized, args)
	for i := 1; i < len(normalized); i++ {
		for _, name := range []string{"db", "verbose", "auto-paste"} {
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

func setupLogging(cfg *config.Config) {
	logutil.Setup(logutil.Options{
		EnableFileLogging: cfg.EnableFileLogging,
		Verbose:           cfg.Verbose,
		Dir:               filepath.Dir(cfg.DBPath),
	})
}

func runWithOptions(ctx context.Context, opts mainOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	enableDPIAwareness()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          promptIdle,
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return fmt.Errorf("failed to open terminal: %w", err)
	}
	defer rl.Close()

	prompter := console.NewPrompter()
	defer prompter.Close()
	renderer := console.NewRenderer(rl.Stdout())

	rt, err := runtimeinit.Bootstrap(ctx, runtimeinit.Options{
		LoadOptions:  config.LoadOptions{DBPathOverride: opts.dbPath, VerboseLogging: opts.verbose},
		SetupLogging: setupLogging,
		Renderer:     renderer,
		Confirm:      prompter.Confirm,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			log.Printf("main: close runtime: %v", err)
		}
	}()
	if opts.autoPaste {
		rt.Config.AutoReadClipboard = true
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(ch)
		select {
		case <-ch:
			cancel()
		case <-ctx.Done():
		}
	}()

	loop := eventloop.New(rt.Config, rt.Controller, eventloop.Options{
		OnBusyChange: func(busy bool) {
			if busy {
				rl.SetPrompt(promptBusy)
			} else {
				rl.SetPrompt(promptIdle)
			}
			rl.Refresh()
		},
	})

	fmt.Fprintln(rl.Stdout(), "Type 'help' for commands.")
	events := make(chan messages.Message, 16)
	repl := &console.REPL{In: rl, Out: rl.Stdout(), Events: events, Renderer: renderer, Prompter: prompter}
	go func() {
		if err := repl.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("main: console stopped: %v", err)
		}
	}()

	err = loop.Run(ctx, events)
	cancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Printf("main: bye")
	return nil
}
