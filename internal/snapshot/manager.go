// Package snapshot writes annotated frames to disk on request.
package snapshot

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"

	"github.com/dj-oyu/moodcam/internal/logger"
	"github.com/dj-oyu/moodcam/pkg/types"
)

// WriteError reports a snapshot that could not be stored. The pipeline keeps
// running.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("snapshot %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Manager names and writes snapshot files. Save is safe to call from any
// goroutine; concurrent saves are serialized.
type Manager struct {
	mu       sync.Mutex
	basePath string
	format   imaging.Format
	ext      string
	now      func() time.Time
	count    int
	last     string
}

// NewManager writes into basePath using format "png" or "jpg"
func NewManager(basePath, format string) (*Manager, error) {
	ext := strings.ToLower(strings.TrimPrefix(format, "."))
	if ext == "" {
		ext = "png"
	}
	f, err := imaging.FormatFromExtension(ext)
	if err != nil {
		return nil, fmt.Errorf("snapshot format %q: %w", format, err)
	}
	if f != imaging.PNG && f != imaging.JPEG {
		return nil, fmt.Errorf("snapshot format %q: only png and jpg are supported", format)
	}
	if basePath == "" {
		basePath = "."
	}
	return &Manager{
		basePath: basePath,
		format:   f,
		ext:      ext,
		now:      time.Now,
	}, nil
}

// Filename returns the name used for a snapshot taken at t
func (m *Manager) Filename(t time.Time) string {
	return fmt.Sprintf("snapshot_%d.%s", t.Unix(), m.ext)
}

// Save encodes frame and returns the written path. Two saves within the same
// second reuse the name; the later one wins.
func (m *Manager) Save(frame *types.Frame) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	path := filepath.Join(m.basePath, m.Filename(m.now()))
	if frame == nil || frame.Image == nil {
		return "", &WriteError{Path: path, Err: fmt.Errorf("no frame")}
	}

	if err := os.MkdirAll(m.basePath, 0o755); err != nil {
		return "", &WriteError{Path: path, Err: err}
	}

	file, err := os.Create(path)
	if err != nil {
		return "", &WriteError{Path: path, Err: err}
	}
	if err := imaging.Encode(file, m.storageImage(frame.Image), m.format, imaging.JPEGQuality(95)); err != nil {
		file.Close()
		return "", &WriteError{Path: path, Err: err}
	}
	if err := file.Close(); err != nil {
		return "", &WriteError{Path: path, Err: err}
	}

	m.count++
	m.last = path
	logger.Info("Snapshot", "Saved %s", path)
	return path, nil
}

// storageImage converts display pixels to what the encoder stores. JPEG has
// no alpha, so frames are flattened onto black first.
func (m *Manager) storageImage(img *image.NRGBA) image.Image {
	if m.format != imaging.JPEG {
		return img
	}
	b := img.Bounds()
	return imaging.Overlay(imaging.New(b.Dx(), b.Dy(), image.Black), img, image.Point{}, 1.0)
}

// Last returns the path of the most recent successful snapshot
func (m *Manager) Last() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Count returns the number of snapshots written
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}
