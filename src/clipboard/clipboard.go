package clipboard

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.design/x/clipboard"
)

// ErrUnavailable is returned when the system clipboard cannot be accessed
// (no display server, missing permission, unsupported platform).
var ErrUnavailable = errors.New("clipboard unavailable")

// Item is one representation currently held by the clipboard.
type Item struct {
	MediaType string
	Data      []byte
}

// Reader lists clipboard items.
type Reader interface {
	ReadItems(ctx context.Context) ([]Item, error)
}

// Writer places text on the clipboard.
type Writer interface {
	WriteText(text string) error
}

var (
	initOnce sync.Once
	initErr  error
	writeMu  sync.Mutex
)

func Init() error {
	initOnce.Do(func() {
		initErr = clipboard.Init()
	})
	return initErr
}

// System is the Reader/Writer backed by the OS clipboard.
type System struct{}

var (
	_ Reader = System{}
	_ Writer = System{}
)

// ReadItems returns the text and image representations that are present, in
// that order. PNG is the only image encoding the OS layer hands out.
func (System) ReadItems(ctx context.Context) ([]Item, error) {
	if err := Init(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var items []Item
	if text := clipboard.Read(clipboard.FmtText); len(text) > 0 {
		items = append(items, Item{MediaType: "text/plain", Data: text})
	}
	if img := clipboard.Read(clipboard.FmtImage); len(img) > 0 {
		items = append(items, Item{MediaType: "image/png", Data: img})
	}
	return items, nil
}

// WriteText performs a mutex-guarded clipboard write to prevent corruption under parallel writes.
func (System) WriteText(text string) error {
	if err := Init(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	writeMu.Lock()
	defer writeMu.Unlock()
	clipboard.Write(clipboard.FmtText, []byte(text))
	return nil
}

// Static is a fixed Reader/Writer, handy for tests and headless runs.
type Static struct {
	Items   []Item
	Err     error
	Written []string
}

func (s *Static) ReadItems(ctx context.Context) ([]Item, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Items, nil
}

func (s *Static) WriteText(text string) error {
	if s.Err != nil {
		return s.Err
	}
	s.Written = append(s.Written, text)
	return nil
}
