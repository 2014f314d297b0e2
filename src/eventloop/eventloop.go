package eventloop

import (
	"context"
	"errors"
	"log"
	"time"

	"gritshot/src/config"
	"gritshot/src/messages"
	"gritshot/src/popup"
	"gritshot/src/worker"
)

var errBusy = errors.New("Busy, please retry")

// Loop is the single goroutine that touches the popup controller. UI events
// arrive on a channel; provider requests run on the worker pool and their
// results come back through the results channel.
type Loop struct {
	ctrl     *popup.Controller
	pool     *worker.Pool
	busy     bool
	results  chan result
	deadline time.Duration
	handlers map[string]func(ctx context.Context, m messages.Message)
	onBusy   func(bool)
	autoRead bool
}

type result struct {
	job    *popup.Job
	text   string
	err    error
	cancel context.CancelFunc
}

type Options struct {
	// OnBusyChange is called on the loop goroutine whenever a request starts or ends.
	OnBusyChange func(busy bool)
}

// New creates a new event loop with defaults based on config.
// If cfg is nil or cfg.RequestTimeoutSec <= 0, a 60s deadline is used.
func New(cfg *config.Config, ctrl *popup.Controller, opts Options) *Loop {
	deadlineSec := config.DefaultRequestTimeout
	if cfg != nil && cfg.RequestTimeoutSec > 0 {
		deadlineSec = cfg.RequestTimeoutSec
	}
	l := &Loop{
		ctrl:     ctrl,
		pool:     worker.New(1),
		results:  make(chan result, 1),
		deadline: time.Duration(deadlineSec) * time.Second,
		onBusy:   opts.OnBusyChange,
		autoRead: cfg != nil && cfg.AutoReadClipboard,
	}
	l.handlers = map[string]func(context.Context, messages.Message){
		messages.TypeClick:      l.handleClick,
		messages.TypeDragEnter:  func(context.Context, messages.Message) { l.ctrl.DragEnter() },
		messages.TypeDragOver:   func(context.Context, messages.Message) { l.ctrl.DragOver() },
		messages.TypeDragLeave:  func(context.Context, messages.Message) { l.ctrl.DragLeave() },
		messages.TypeDrop:       func(_ context.Context, m messages.Message) { l.ctrl.Drop(m.(messages.Drop).Files) },
		messages.TypePaste:      func(_ context.Context, m messages.Message) { l.ctrl.HandlePaste(m.(messages.Paste).Items) },
		messages.TypeFileChange: func(_ context.Context, m messages.Message) { l.ctrl.Pick(m.(messages.FileChange).Files) },
		messages.TypeKeyDown:    l.handleKeyDown,
		messages.TypeChange: func(_ context.Context, m messages.Message) {
			c := m.(messages.Change)
			l.ctrl.SetField(c.Field, c.Value)
		},
	}
	return l
}

func (l *Loop) setBusy(b bool) {
	l.busy = b
	if l.onBusy != nil {
		l.onBusy(b)
	}
}

// Busy reports whether a provider request is in flight.
func (l *Loop) Busy() bool { return l.busy }

// Deadline returns the configured request deadline for this loop.
func (l *Loop) Deadline() time.Duration { return l.deadline }

// Run processes events until ctx is cancelled, the events channel closes,
// or a Quit message arrives.
func (l *Loop) Run(ctx context.Context, events <-chan messages.Message) error {
	defer l.pool.Close()
	// Cancelled before Close so an in-flight request does not hold up exit.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if l.autoRead {
		l.ctrl.PasteFromClipboard(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-events:
			if !ok || !l.Dispatch(ctx, m) {
				return nil
			}
		case res := <-l.results:
			l.handleResult(res)
		}
	}
}

// Dispatch routes one event to its handler. It returns false for Quit.
func (l *Loop) Dispatch(ctx context.Context, m messages.Message) bool {
	if m == nil {
		return true
	}
	if m.Type() == messages.TypeQuit {
		return false
	}
	h, ok := l.handlers[m.Type()]
	if !ok {
		log.Printf("eventloop: no handler for %s", m.Type())
		return true
	}
	h(ctx, m)
	return true
}

func (l *Loop) handleClick(ctx context.Context, m messages.Message) {
	click := m.(messages.Click)
	switch click.Target {
	case messages.TargetPaste:
		l.ctrl.PasteFromClipboard(ctx)
	case messages.TargetClear:
		l.ctrl.ClearImage()
	case messages.TargetSend:
		l.startRequest(ctx, l.ctrl.StartSend)
	case messages.TargetTest:
		l.startRequest(ctx, l.ctrl.StartTest)
	case messages.TargetSave:
		l.ctrl.SaveSettings(ctx)
	case messages.TargetClearKeys:
		l.ctrl.ClearKeys(ctx)
	case messages.TargetCopy:
		l.ctrl.CopyAnswer()
	case messages.TargetCapture:
		l.ctrl.CaptureScreen(click.Display)
	default:
		log.Printf("eventloop: unknown click target %q", click.Target)
	}
}

func (l *Loop) handleKeyDown(ctx context.Context, m messages.Message) {
	k := m.(messages.KeyDown)
	if l.ctrl.KeyDown(k.Key, k.Ctrl, k.Meta) {
		l.startRequest(ctx, l.ctrl.StartSend)
	}
}

func (l *Loop) handleResult(res result) {
	log.Printf("handleResult: called with text length=%d, err=%v", len(res.text), res.err)
	defer func() {
		l.setBusy(false)
		if res.cancel != nil {
			res.cancel()
		}
	}()
	l.ctrl.Finish(res.job, res.text, res.err)
}

// startRequest prepares a job through start and hands it to the worker. A
// request while one is in flight is rejected, never queued.
func (l *Loop) startRequest(ctx context.Context, start func() (*popup.Job, bool)) {
	if l.busy {
		log.Printf("eventloop: busy, request rejected")
		return
	}
	job, ok := start()
	if !ok {
		return
	}

	jobCtx, cancel := context.WithTimeout(ctx, l.deadline)
	l.setBusy(true)
	submitted := l.pool.Submit(jobCtx, job, func(text string, err error) {
		select {
		case l.results <- result{job: job, text: text, err: err, cancel: cancel}:
		case <-ctx.Done():
			cancel()
		}
	})
	if !submitted {
		cancel()
		l.setBusy(false)
		l.ctrl.Finish(job, "", errBusy)
	}
}
