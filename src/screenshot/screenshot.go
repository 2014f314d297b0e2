package screenshot

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/kbinani/screenshot"
)

// Region represents a screen region to capture
type Region struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Grabber captures screen pixels as PNG bytes.
type Grabber interface {
	CaptureDisplay(index int) ([]byte, error)
	CaptureRegion(region Region) ([]byte, error)
}

// System grabs from the real displays.
type System struct{}

var _ Grabber = System{}

// CaptureDisplay captures one active display; index -1 captures the union of
// all displays.
func (System) CaptureDisplay(index int) ([]byte, error) {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return nil, fmt.Errorf("no active displays found")
	}
	if index >= n {
		return nil, fmt.Errorf("display %d out of range (%d active)", index, n)
	}

	var bounds image.Rectangle
	if index < 0 {
		bounds = screenshot.GetDisplayBounds(0)
		for i := 1; i < n; i++ {
			bounds = bounds.Union(screenshot.GetDisplayBounds(i))
		}
	} else {
		bounds = screenshot.GetDisplayBounds(index)
	}

	img, err := screenshot.CaptureRect(bounds)
	if err != nil {
		return nil, fmt.Errorf("failed to capture display: %w", err)
	}
	return encodePNG(img)
}

// CaptureRegion captures a specific region of the screen
func (System) CaptureRegion(region Region) ([]byte, error) {
	if region.Width <= 0 || region.Height <= 0 {
		return nil, fmt.Errorf("invalid region dimensions: width=%d, height=%d", region.Width, region.Height)
	}

	bounds := image.Rect(region.X, region.Y, region.X+region.Width, region.Y+region.Height)
	img, err := screenshot.CaptureRect(bounds)
	if err != nil {
		return nil, fmt.Errorf("failed to capture region: %w", err)
	}
	return encodePNG(img)
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image as PNG: %w", err)
	}
	return buf.Bytes(), nil
}
