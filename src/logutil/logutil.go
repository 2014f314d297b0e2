package logutil

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
)

const (
	logFileName  = "gritshot_debug.log"
	maxSizeBytes = 10 * 1024 * 1024 // 10 MB
	maxArchives  = 3
)

// Options selects where the standard logger writes.
// Verbose wins over file logging; with neither, logs are discarded so the
// console frontend stays clean.
type Options struct {
	EnableFileLogging bool
	Verbose           bool
	Dir               string
}

func Setup(opts Options) {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	switch {
	case opts.Verbose:
		log.SetOutput(os.Stderr)
	case opts.EnableFileLogging:
		w, err := newRotatingWriter(filepath.Join(opts.Dir, logFileName))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
			log.SetOutput(io.Discard)
			return
		}
		log.SetOutput(w)
	default:
		log.SetOutput(io.Discard)
	}
}

type rotatingWriter struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

func newRotatingWriter(path string) (*rotatingWriter, error) {
	rotateIfNeeded(path)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, err
	}
	return &rotatingWriter{path: path, f: f}, nil
}

func (w *rotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	// naive rotation check per write
	if st, err := w.f.Stat(); err == nil && st.Size()+int64(len(p)) > maxSizeBytes {
		_ = w.f.Close()
		rotate(w.path)
		nf, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return 0, err
		}
		w.f = nf
	}
	return w.f.Write(p)
}

func rotateIfNeeded(path string) {
	if st, err := os.Stat(path); err == nil && st.Size() > maxSizeBytes {
		rotate(path)
	}
}

// rotate shifts path to .1, .1 to .2 and so on; the oldest archive is dropped.
func rotate(path string) {
	_ = os.Remove(archiveName(path, maxArchives))
	for i := maxArchives - 1; i >= 1; i-- {
		_ = os.Rename(archiveName(path, i), archiveName(path, i+1))
	}
	_ = os.Rename(path, archiveName(path, 1))
}

func archiveName(path string, n int) string { return fmt.Sprintf("%s.%d", path, n) }

// RedactKey masks an API key, leaving first/last 4 chars: xxxx...yyyy
func RedactKey(k string) string {
	if len(k) <= 8 {
		return "********"
	}
	return fmt.Sprintf("%s...%s", k[:4], k[len(k)-4:])
}
