package clipboard

import (
	"context"
	"errors"
	"testing"
)

func TestSystemReadItems(t *testing.T) {
	// Requires a display server; only checks that the call does not panic.
	items, err := System{}.ReadItems(context.Background())
	if err != nil {
		if !errors.Is(err, ErrUnavailable) {
			t.Errorf("unexpected error type: %v", err)
		}
		t.Logf("clipboard unavailable (expected in headless environment): %v", err)
		return
	}
	for _, it := range items {
		if it.MediaType == "" {
			t.Error("item without media type")
		}
	}
}

func TestStatic(t *testing.T) {
	s := &Static{Items: []Item{{MediaType: "image/png", Data: []byte{1}}}}
	items, err := s.ReadItems(context.Background())
	if err != nil || len(items) != 1 {
		t.Fatalf("ReadItems = %v, %v", items, err)
	}
	if err := s.WriteText("answer"); err != nil {
		t.Fatal(err)
	}
	if len(s.Written) != 1 || s.Written[0] != "answer" {
		t.Errorf("Written = %v", s.Written)
	}

	s.Err = ErrUnavailable
	if _, err := s.ReadItems(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v", err)
	}
}
