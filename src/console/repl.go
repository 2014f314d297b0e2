package console

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	"gritshot/src/messages"
)

// LineReader is satisfied by *readline.Instance.
type LineReader interface {
	Readline() (string, error)
}

type question struct {
	text  string
	reply chan bool
}

// Prompter answers Confirm calls from the event loop with the next line
// typed at the REPL.
type Prompter struct {
	questions chan question
	done      chan struct{}
	once      sync.Once
}

func NewPrompter() *Prompter {
	return &Prompter{questions: make(chan question), done: make(chan struct{})}
}

// Confirm blocks until the REPL answers. It returns false once the prompter
// is closed.
func (p *Prompter) Confirm(message string) bool {
	q := question{text: message, reply: make(chan bool, 1)}
	select {
	case p.questions <- q:
	case <-p.done:
		return false
	}
	select {
	case ok := <-q.reply:
		return ok
	case <-p.done:
		return false
	}
}

func (p *Prompter) Close() {
	p.once.Do(func() { close(p.done) })
}

type REPL struct {
	In       LineReader
	Out      io.Writer
	Events   chan<- messages.Message
	Renderer *Renderer
	Prompter *Prompter
}

type lineResult struct {
	line string
	err  error
}

// Run reads commands until EOF, interrupt, quit or ctx cancellation. It
// always ends by sending Quit so the loop shuts down.
func (r *REPL) Run(ctx context.Context) error {
	defer r.emit(ctx, messages.Quit{})

	lines := make(chan lineResult)
	go func() {
		for {
			line, err := r.In.Readline()
			select {
			case lines <- lineResult{line: line, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	var questions <-chan question
	if r.Prompter != nil {
		questions = r.Prompter.questions
	}
	var pending *question

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case q := <-questions:
			pending = &q
			fmt.Fprintf(r.Out, "%s [y/N]\n", q.text)
		case lr := <-lines:
			if lr.err != nil {
				log.Printf("console: input closed: %v", lr.err)
				return nil
			}
			if pending != nil {
				pending.reply <- isYes(lr.line)
				pending = nil
				continue
			}
			if !r.handleLine(ctx, lr.line) {
				return nil
			}
		}
	}
}

func (r *REPL) handleLine(ctx context.Context, line string) bool {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "help", "?":
		fmt.Fprintln(r.Out, Help)
		return true
	case "show":
		if r.Renderer != nil {
			fmt.Fprint(r.Out, r.Renderer.Dump())
		}
		return true
	}

	m, err := Parse(line)
	if err != nil {
		fmt.Fprintln(r.Out, err)
		return true
	}
	if m == nil {
		return true
	}
	if m.Type() == messages.TypeQuit {
		return false
	}
	// Files typed at the prompt arrive the way a drag would.
	if m.Type() == messages.TypeDrop {
		r.emit(ctx, messages.DragEnter{})
	}
	return r.emit(ctx, m)
}

func (r *REPL) emit(ctx context.Context, m messages.Message) bool {
	select {
	case r.Events <- m:
		return true
	case <-ctx.Done():
		return false
	}
}

func isYes(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes":
		return true
	}
	return false
}
