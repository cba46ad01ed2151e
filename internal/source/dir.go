package source

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"

	"github.com/dj-oyu/moodcam/internal/logger"
	"github.com/dj-oyu/moodcam/pkg/types"
)

// DirSource replays the PNG and JPEG files of a directory in lexical order.
// Every frame is resized to the size of the first one.
type DirSource struct {
	files  []string
	loop   bool
	width  int
	height int

	mu     sync.Mutex
	next   int
	seq    uint64
	closed bool
}

var _ Source = (*DirSource)(nil)

// NewDirSource lists dir. It fails with ErrDeviceUnavailable when dir has no
// images.
func NewDirSource(dir string, loop bool) (*DirSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".png", ".jpg", ".jpeg":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no images in %s", ErrDeviceUnavailable, dir)
	}
	sort.Strings(files)

	logger.Info("DirSource", "Replaying %d images from %s (loop=%v)", len(files), dir, loop)
	return &DirSource{files: files, loop: loop}, nil
}

// Read decodes the next image
func (s *DirSource) Read() (*types.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrEndOfStream
	}
	if s.next >= len(s.files) {
		if !s.loop {
			return nil, ErrEndOfStream
		}
		s.next = 0
	}

	path := s.files[s.next]
	s.next++

	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	b := img.Bounds()
	if s.width == 0 {
		s.width, s.height = b.Dx(), b.Dy()
	}

	nrgba := imaging.Clone(img)
	if b.Dx() != s.width || b.Dy() != s.height {
		nrgba = imaging.Resize(img, s.width, s.height, imaging.Linear)
	}

	s.seq++
	return types.NewFrame(nrgba, s.seq, time.Now()), nil
}

// Close stops the replay; later reads return ErrEndOfStream
func (s *DirSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// OpenDir returns an OpenFunc that ignores the device index and replays dir
func OpenDir(dir string, loop bool) OpenFunc {
	return func(int) (Source, error) {
		return NewDirSource(dir, loop)
	}
}
