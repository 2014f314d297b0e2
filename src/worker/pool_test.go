package worker

import (
	"context"
	"errors"
	"testing"
	"time"
)

type taskFunc func(ctx context.Context) (string, error)

func (f taskFunc) Run(ctx context.Context) (string, error) { return f(ctx) }

type result struct {
	text string
	err  error
}

func TestSubmitRunsTask(t *testing.T) {
	p := New(1)
	defer p.Close()

	done := make(chan result, 1)
	ok := p.Submit(context.Background(), taskFunc(func(ctx context.Context) (string, error) {
		return "hello", nil
	}), func(text string, err error) { done <- result{text, err} })
	if !ok {
		t.Fatal("Submit rejected on an idle pool")
	}

	select {
	case r := <-done:
		if r.text != "hello" || r.err != nil {
			t.Errorf("result = %+v", r)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("callback not invoked")
	}
}

func TestSubmitRejectsWhenBusy(t *testing.T) {
	p := New(1)
	defer p.Close()

	started := make(chan struct{})
	release := make(chan struct{})
	block := taskFunc(func(ctx context.Context) (string, error) {
		close(started)
		<-release
		return "", nil
	})
	noop := taskFunc(func(ctx context.Context) (string, error) { return "", nil })
	var results = make(chan result, 3)
	cb := func(text string, err error) { results <- result{text, err} }

	if !p.Submit(context.Background(), block, cb) {
		t.Fatal("first submit rejected")
	}
	<-started
	// The worker is busy; one job fits the queue, the next is dropped.
	if !p.Submit(context.Background(), noop, cb) {
		t.Fatal("queued submit rejected")
	}
	if p.Submit(context.Background(), noop, cb) {
		t.Error("third submit should be dropped while the queue is full")
	}
	close(release)

	for i := 0; i < 2; i++ {
		select {
		case <-results:
		case <-time.After(2 * time.Second):
			t.Fatal("callbacks not invoked")
		}
	}
}

func TestDeadlineExceeded(t *testing.T) {
	p := New(1)
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	release := make(chan struct{})
	defer close(release)

	done := make(chan result, 1)
	p.Submit(ctx, taskFunc(func(context.Context) (string, error) {
		<-release
		return "late", nil
	}), func(text string, err error) { done <- result{text, err} })

	select {
	case r := <-done:
		if !errors.Is(r.err, context.DeadlineExceeded) {
			t.Errorf("err = %v, want deadline exceeded", r.err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("deadline not honored")
	}
}
