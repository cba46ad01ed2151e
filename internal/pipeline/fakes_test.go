package pipeline

import (
	"errors"
	"image"
	"image/color"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dj-oyu/moodcam/internal/detect"
	"github.com/dj-oyu/moodcam/internal/overlay"
	"github.com/dj-oyu/moodcam/internal/source"
	"github.com/dj-oyu/moodcam/pkg/types"
)

// fakeSource yields blank frames, then ErrEndOfStream after limit frames
// (limit < 0 means never).
type fakeSource struct {
	limit int
	delay time.Duration

	mu               sync.Mutex
	reads            int
	closed           atomic.Bool
	closeCalls       atomic.Int32
	inFlight         atomic.Int32
	closedDuringRead atomic.Bool
}

func (s *fakeSource) Read() (*types.Frame, error) {
	if s.closed.Load() {
		return nil, source.ErrEndOfStream
	}
	s.inFlight.Add(1)
	defer s.inFlight.Add(-1)

	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.limit >= 0 && s.reads >= s.limit {
		return nil, source.ErrEndOfStream
	}
	s.reads++
	img := image.NewNRGBA(image.Rect(0, 0, 320, 240))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}
	return types.NewFrame(img, uint64(s.reads), time.Now()), nil
}

func (s *fakeSource) Close() error {
	if s.inFlight.Load() > 0 {
		s.closedDuringRead.Store(true)
	}
	s.closed.Store(true)
	s.closeCalls.Add(1)
	return nil
}

type fakeOpener struct {
	mu      sync.Mutex
	opened  []*fakeSource
	limit   int
	delay   time.Duration
	failErr error
}

func (o *fakeOpener) open(int) (source.Source, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.failErr != nil {
		return nil, o.failErr
	}
	src := &fakeSource{limit: o.limit, delay: o.delay}
	o.opened = append(o.opened, src)
	return src, nil
}

func (o *fakeOpener) last() *fakeSource {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opened[len(o.opened)-1]
}

func (o *fakeOpener) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.opened)
}

type classifierFunc func(img image.Image) (types.Prediction, error)

func (f classifierFunc) Classify(img image.Image) (types.Prediction, error) { return f(img) }

func happyClassifier() Classifier {
	return classifierFunc(func(image.Image) (types.Prediction, error) {
		return types.Prediction{types.Happy: 0.9, types.Neutral: 0.1}, nil
	})
}

func fixedLocator(regions ...types.Region) detect.Locator {
	return detect.LocatorFunc(func(*types.Frame) []types.Region {
		return append([]types.Region(nil), regions...)
	})
}

func newTestProcessor(t *testing.T, loc detect.Locator, cls Classifier) *Processor {
	t.Helper()
	r, err := overlay.NewRenderer(0)
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	p, err := NewProcessor(ProcessorConfig{
		Locator:    loc,
		Classifier: cls,
		Renderer:   r,
		Threshold:  0.4,
	})
	if err != nil {
		t.Fatalf("NewProcessor: %v", err)
	}
	return p
}

// scriptedDisplay returns commands[i] on the i-th Poll, then CommandNone.
type scriptedDisplay struct {
	commands []Command
	polls    int
	shown    int
	closed   bool
	showErr  error
	lastSeen color.NRGBA
}

func (d *scriptedDisplay) Show(f *types.Frame) error {
	d.shown++
	d.lastSeen = f.Image.NRGBAAt(0, 0)
	return d.showErr
}

func (d *scriptedDisplay) Poll() Command {
	i := d.polls
	d.polls++
	if i < len(d.commands) {
		return d.commands[i]
	}
	return CommandNone
}

func (d *scriptedDisplay) Close() error {
	d.closed = true
	return nil
}

var errBoom = errors.New("boom")

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
