package imagesource

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gritshot/src/clipboard"
	"gritshot/src/screenshot"
)

// Minimal PNG header; enough for content sniffing.
var pngBytes = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func TestFromClipboard(t *testing.T) {
	tests := []struct {
		name    string
		clip    *clipboard.Static
		wantErr error
		wantMT  string
	}{
		{
			name:   "image after text",
			clip:   &clipboard.Static{Items: []clipboard.Item{{MediaType: "text/plain", Data: []byte("hi")}, {MediaType: "image/png", Data: pngBytes}}},
			wantMT: "image/png",
		},
		{
			name:    "text only",
			clip:    &clipboard.Static{Items: []clipboard.Item{{MediaType: "text/plain", Data: []byte("hi")}}},
			wantErr: ErrNoImage,
		},
		{
			name:    "empty",
			clip:    &clipboard.Static{},
			wantErr: ErrNoImage,
		},
		{
			name:    "permission denied",
			clip:    &clipboard.Static{Err: clipboard.ErrUnavailable},
			wantErr: ErrPermission,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSource(Options{Clipboard: tt.clip})
			h, err := s.FromClipboard(context.Background())
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				if s.Current() != nil {
					t.Error("no handle should be live after a failed read")
				}
				return
			}
			if err != nil {
				t.Fatalf("FromClipboard: %v", err)
			}
			if h.MediaType() != tt.wantMT || h.Origin() != OriginClipboard {
				t.Errorf("handle = %s/%s", h.MediaType(), h.Origin())
			}
		})
	}
}

func TestFromClipboardPermissionMessage(t *testing.T) {
	s := NewSource(Options{})
	_, err := s.FromClipboard(context.Background())
	if err == nil || err.Error() != "Failed to read clipboard (permission required)" {
		t.Errorf("err = %v", err)
	}
}

func TestFromDropAndPick(t *testing.T) {
	s := NewSource(Options{})

	if _, err := s.FromDrop([]File{{Name: "a.txt", MediaType: "text/plain", Data: []byte("x")}}); err == nil || err.Error() != "Please drop a valid image file" {
		t.Errorf("drop text: err = %v", err)
	}
	if _, err := s.FromPick(nil); err == nil || err.Error() != "Please select a valid image file (PNG, JPG)" {
		t.Errorf("pick none: err = %v", err)
	}
	if _, err := s.FromPick([]File{{Name: "a.txt", Data: []byte("plain text")}}); !errors.Is(err, ErrNotImage) {
		t.Errorf("pick sniffed text: err = %v", err)
	}

	h, err := s.FromDrop([]File{
		{Name: "shot.jpg", MediaType: "image/jpeg", Data: []byte{0xff, 0xd8, 0xff}},
		{Name: "other.png", MediaType: "image/png", Data: pngBytes},
	})
	if err != nil {
		t.Fatalf("FromDrop: %v", err)
	}
	if h.MediaType() != "image/jpeg" {
		t.Errorf("first file must win, got %s", h.MediaType())
	}

	h, err = s.FromPick([]File{{Name: "noext", Data: pngBytes}})
	if err != nil {
		t.Fatalf("FromPick sniffed png: %v", err)
	}
	if h.MediaType() != "image/png" {
		t.Errorf("sniffed media type = %s", h.MediaType())
	}
}

func TestFromPasteEventFirstImageWins(t *testing.T) {
	s := NewSource(Options{})
	items := []Item{
		{MediaType: "text/plain", Data: []byte("caption")},
		{MediaType: "image/png", Data: pngBytes},
		{MediaType: "image/jpeg", Data: []byte{0xff, 0xd8}},
	}
	h, ok := s.FromPasteEvent(items)
	if !ok || h == nil {
		t.Fatal("expected paste to be consumed")
	}
	if h.MediaType() != "image/png" {
		t.Errorf("media type = %s, want image/png", h.MediaType())
	}
	if s.Registry().Live() != 1 {
		t.Errorf("live URLs = %d, want 1", s.Registry().Live())
	}

	if _, ok := s.FromPasteEvent([]Item{{MediaType: "text/plain"}}); ok {
		t.Error("paste without image must not be consumed")
	}
	if s.Current() != h {
		t.Error("a non-image paste must not replace the current handle")
	}
}

func TestAdoptRevokesPreviousFirst(t *testing.T) {
	reg := NewRegistry()
	var ops []string
	reg.Observe(func(op, url string) { ops = append(ops, op) })
	s := NewSource(Options{Registry: reg})

	first := s.Adopt(pngBytes, "image/png", OriginDrop)
	second := s.Adopt(pngBytes, "image/png", OriginPaste)

	want := []string{"create", "revoke", "create"}
	if strings.Join(ops, ",") != strings.Join(want, ",") {
		t.Errorf("ops = %v, want %v", ops, want)
	}
	if reg.IsLive(first.URL()) || !first.Released() {
		t.Error("first handle must be revoked")
	}
	if !reg.IsLive(second.URL()) || reg.Live() != 1 {
		t.Errorf("exactly the second URL must be live (live=%d)", reg.Live())
	}
	if !strings.HasPrefix(second.URL(), "blob:gritshot/") || first.URL() == second.URL() {
		t.Errorf("unexpected URLs %q %q", first.URL(), second.URL())
	}
}

func TestClear(t *testing.T) {
	s := NewSource(Options{})
	if s.Clear() {
		t.Error("Clear on empty source should report false")
	}
	h := s.Adopt(pngBytes, "image/png", OriginPick)
	if !s.Clear() {
		t.Error("Clear should report true")
	}
	if s.Current() != nil || s.Registry().Live() != 0 || !h.Released() {
		t.Error("handle not released")
	}
	if _, err := ToDataURL(h); !errors.Is(err, ErrConversion) {
		t.Errorf("encoding a released handle: err = %v", err)
	}
}

func TestEncoding(t *testing.T) {
	s := NewSource(Options{})
	h := s.Adopt([]byte("abc"), "image/jpeg", OriginDrop)

	url, err := ToDataURL(h)
	if err != nil {
		t.Fatal(err)
	}
	if url != "data:image/jpeg;base64,YWJj" {
		t.Errorf("data URL = %q", url)
	}
	b64, err := ToBase64(h)
	if err != nil || b64 != "YWJj" {
		t.Errorf("base64 = %q, %v", b64, err)
	}

	empty := s.Adopt(nil, "image/png", OriginDrop)
	if _, err := ToBase64(empty); err == nil || err.Error() != "Failed to convert image to data URL" {
		t.Errorf("empty handle: err = %v", err)
	}
	if _, err := ToBase64(nil); !errors.Is(err, ErrConversion) {
		t.Errorf("nil handle: err = %v", err)
	}
}

type fakeGrabber struct {
	data []byte
	err  error
	got  int
}

func (f *fakeGrabber) CaptureDisplay(index int) ([]byte, error) {
	f.got = index
	return f.data, f.err
}

func (f *fakeGrabber) CaptureRegion(region screenshot.Region) ([]byte, error) {
	return f.data, f.err
}

func TestFromScreen(t *testing.T) {
	g := &fakeGrabber{data: pngBytes}
	s := NewSource(Options{Screen: g})
	h, err := s.FromScreen(-1)
	if err != nil {
		t.Fatal(err)
	}
	if g.got != -1 || h.MediaType() != "image/png" || h.Origin() != OriginScreen {
		t.Errorf("unexpected capture: display=%d handle=%s/%s", g.got, h.MediaType(), h.Origin())
	}

	g.err = errors.New("no display")
	if _, err := s.FromScreen(0); err == nil {
		t.Error("expected capture error")
	}
	if s.Current() != h {
		t.Error("failed capture must keep the previous handle")
	}

	if _, err := NewSource(Options{}).FromScreen(0); err == nil {
		t.Error("expected error without a grabber")
	}
}

func TestFromPath(t *testing.T) {
	dir := t.TempDir()
	imgPath := filepath.Join(dir, "shot")
	if err := os.WriteFile(imgPath, pngBytes, 0o644); err != nil {
		t.Fatal(err)
	}
	f, err := FromPath(imgPath)
	if err != nil {
		t.Fatalf("FromPath: %v", err)
	}
	if f.Name != "shot" || f.MediaType != "image/png" || len(f.Data) != len(pngBytes) {
		t.Errorf("file = %s %s %d", f.Name, f.MediaType, len(f.Data))
	}

	if _, err := FromPath(filepath.Join(dir, "missing.png")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := FromPath(dir); err == nil {
		t.Error("expected error for directory")
	}

	big := filepath.Join(dir, "big.png")
	fh, err := os.Create(big)
	if err != nil {
		t.Fatal(err)
	}
	if err := fh.Truncate(MaxImageSize + 1); err != nil {
		t.Fatal(err)
	}
	fh.Close()
	if _, err := FromPath(big); !errors.Is(err, ErrTooLarge) {
		t.Errorf("oversized file: err = %v", err)
	}
}
