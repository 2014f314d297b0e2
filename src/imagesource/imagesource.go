// Package imagesource turns the ways a user can hand over an image
// (clipboard, drag-and-drop, file picker, paste event, screen capture) into a
// single live Handle, and encodes that handle for the provider requests.
package imagesource

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"gritshot/src/clipboard"
	"gritshot/src/screenshot"
)

const (
	maxImageSizeMB = 20
	MaxImageSize   = maxImageSizeMB * 1024 * 1024
)

// Acquisition errors carry the user-visible status text.
var (
	ErrNoImage    = errors.New("No image found in clipboard")
	ErrPermission = errors.New("Failed to read clipboard (permission required)")
	ErrNotImage   = errors.New("not an image")
	ErrTooLarge   = fmt.Errorf("Image exceeds maximum size of %d MB", maxImageSizeMB)
	ErrConversion = errors.New("Failed to convert image to data URL")

	errDropNotImage = &statusError{kind: ErrNotImage, msg: "Please drop a valid image file"}
	errPickNotImage = &statusError{kind: ErrNotImage, msg: "Please select a valid image file (PNG, JPG)"}
)

type statusError struct {
	kind error
	msg  string
}

func (e *statusError) Error() string { return e.msg }
func (e *statusError) Unwrap() error { return e.kind }

// Origins recorded on a Handle.
const (
	OriginClipboard = "clipboard"
	OriginDrop      = "drop"
	OriginPick      = "pick"
	OriginPaste     = "paste"
	OriginScreen    = "screen"
)

// File is a dropped or picked file. MediaType is the declared type; when
// empty it is sniffed from Data.
type File struct {
	Name      string
	MediaType string
	Data      []byte
}

// Item is one entry of a paste event.
type Item struct {
	MediaType string
	Data      []byte
}

// Handle is the in-memory image plus its revocable display URL.
type Handle struct {
	data      []byte
	mediaType string
	url       string
	origin    string
	released  bool
}

func (h *Handle) URL() string       { return h.url }
func (h *Handle) MediaType() string { return h.mediaType }
func (h *Handle) Origin() string    { return h.origin }
func (h *Handle) Size() int         { return len(h.data) }
func (h *Handle) Released() bool    { return h.released }

// Options wires a Source to its collaborators. Nil Clipboard or Screen
// makes the matching acquisition fail.
type Options struct {
	Registry  *Registry
	Clipboard clipboard.Reader
	Screen    screenshot.Grabber
}

// Source owns the single live Handle.
type Source struct {
	reg     *Registry
	clip    clipboard.Reader
	screen  screenshot.Grabber
	current *Handle
}

func NewSource(opts Options) *Source {
	reg := opts.Registry
	if reg == nil {
		reg = NewRegistry()
	}
	return &Source{reg: reg, clip: opts.Clipboard, screen: opts.Screen}
}

func (s *Source) Registry() *Registry { return s.reg }

// Current returns the live handle or nil.
func (s *Source) Current() *Handle { return s.current }

// FromClipboard adopts the first image item the system clipboard offers.
func (s *Source) FromClipboard(ctx context.Context) (*Handle, error) {
	if s.clip == nil {
		return nil, ErrPermission
	}
	items, err := s.clip.ReadItems(ctx)
	if err != nil {
		log.Printf("imagesource: clipboard read failed: %v", err)
		return nil, fmt.Errorf("%w: %v", ErrPermission, err)
	}
	for _, it := range items {
		if isImageType(it.MediaType) && len(it.Data) > 0 {
			return s.Adopt(it.Data, it.MediaType, OriginClipboard), nil
		}
	}
	return nil, ErrNoImage
}

// FromDrop adopts the first dropped file when it is an image.
func (s *Source) FromDrop(files []File) (*Handle, error) {
	return s.fromFiles(files, OriginDrop, errDropNotImage)
}

// FromPick adopts the first file chosen in the file picker when it is an image.
func (s *Source) FromPick(files []File) (*Handle, error) {
	return s.fromFiles(files, OriginPick, errPickNotImage)
}

func (s *Source) fromFiles(files []File, origin string, notImage error) (*Handle, error) {
	if len(files) == 0 {
		return nil, notImage
	}
	f := files[0]
	mt := mediaTypeOf(f)
	if !isImageType(mt) || len(f.Data) == 0 {
		log.Printf("imagesource: rejected %s file %q (type %q)", origin, f.Name, mt)
		return nil, notImage
	}
	if len(f.Data) > MaxImageSize {
		return nil, ErrTooLarge
	}
	return s.Adopt(f.Data, mt, origin), nil
}

// FromPasteEvent adopts the first image item of a paste event; later image
// items are ignored. ok is false when the event held no image.
func (s *Source) FromPasteEvent(items []Item) (h *Handle, ok bool) {
	for _, it := range items {
		if isImageType(it.MediaType) {
			return s.Adopt(it.Data, it.MediaType, OriginPaste), true
		}
	}
	return nil, false
}

// FromScreen captures a display (-1 for all displays) as PNG.
func (s *Source) FromScreen(display int) (*Handle, error) {
	if s.screen == nil {
		return nil, errors.New("Screen capture is not available")
	}
	data, err := s.screen.CaptureDisplay(display)
	if err != nil {
		return nil, fmt.Errorf("Screen capture failed: %w", err)
	}
	return s.Adopt(data, "image/png", OriginScreen), nil
}

// Adopt makes data the live image. The previous handle's display URL is
// revoked before the new one is issued.
func (s *Source) Adopt(data []byte, mediaType, origin string) *Handle {
	s.release()
	h := &Handle{data: data, mediaType: mediaType, origin: origin}
	h.url = s.reg.Create()
	s.current = h
	log.Printf("imagesource: adopted %d bytes (%s) from %s", len(data), mediaType, origin)
	return h
}

// Clear releases the live handle. It reports whether there was one.
func (s *Source) Clear() bool {
	had := s.current != nil
	s.release()
	return had
}

func (s *Source) release() {
	if s.current == nil {
		return
	}
	s.reg.Revoke(s.current.url)
	s.current.released = true
	s.current.data = nil
	s.current = nil
}

// ToDataURL encodes h as data:<media type>;base64,<payload>.
func ToDataURL(h *Handle) (string, error) {
	b64, err := ToBase64(h)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("data:%s;base64,%s", h.mediaType, b64), nil
}

// ToBase64 encodes h's bytes without any prefix.
func ToBase64(h *Handle) (string, error) {
	if h == nil || h.released || len(h.data) == 0 {
		return "", ErrConversion
	}
	return base64.StdEncoding.EncodeToString(h.data), nil
}

// FromPath reads a file from disk for the drop and pick paths.
func FromPath(path string) (File, error) {
	st, err := os.Stat(path)
	if err != nil {
		return File{}, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	if st.IsDir() {
		return File{}, fmt.Errorf("%s is a directory", path)
	}
	if st.Size() > MaxImageSize {
		return File{}, ErrTooLarge
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	return File{Name: filepath.Base(path), MediaType: mimetype.Detect(data).String(), Data: data}, nil
}

func mediaTypeOf(f File) string {
	if f.MediaType != "" {
		return f.MediaType
	}
	return mimetype.Detect(f.Data).String()
}

func isImageType(mt string) bool {
	return strings.HasPrefix(strings.ToLower(mt), "image/")
}
