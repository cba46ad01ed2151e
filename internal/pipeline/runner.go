package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dj-oyu/moodcam/internal/logger"
	"github.com/dj-oyu/moodcam/internal/metrics"
	"github.com/dj-oyu/moodcam/internal/snapshot"
	"github.com/dj-oyu/moodcam/internal/source"
	"github.com/dj-oyu/moodcam/pkg/types"
)

// maxReadFailures is how many consecutive non-EOS read errors end a session.
const maxReadFailures = 30

// RunnerConfig configures the synchronous mode
type RunnerConfig struct {
	Open          source.OpenFunc
	DeviceIndex   int
	Processor     *Processor
	Display       Display
	Snapshots     *snapshot.Manager
	FrameInterval time.Duration
}

// Runner reads, annotates and shows frames on the calling goroutine.
type Runner struct {
	open      source.OpenFunc
	index     int
	proc      *Processor
	display   Display
	snapshots *snapshot.Manager
	interval  time.Duration
	metrics   *metrics.Metrics
}

// NewRunner checks cfg. A nil Display becomes NullDisplay.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if cfg.Open == nil || cfg.Processor == nil {
		return nil, errors.New("pipeline: runner needs an opener and a processor")
	}
	if cfg.Display == nil {
		cfg.Display = NullDisplay{}
	}
	return &Runner{
		open:      cfg.Open,
		index:     cfg.DeviceIndex,
		proc:      cfg.Processor,
		display:   cfg.Display,
		snapshots: cfg.Snapshots,
		interval:  cfg.FrameInterval,
		metrics:   cfg.Processor.Metrics(),
	}, nil
}

// Run opens the source and loops until the user quits, ctx is cancelled or
// the stream ends, all of which return nil. The source and display are
// released on every exit path, including a panic inside an iteration.
func (r *Runner) Run(ctx context.Context) (err error) {
	defer func() {
		if derr := r.display.Close(); derr != nil {
			logger.Warn("Runner", "Close display: %v", derr)
		}
	}()

	src, err := r.open(r.index)
	if err != nil {
		return fmt.Errorf("open source %d: %w", r.index, err)
	}
	r.metrics.SetRunning(true)

	defer func() {
		r.metrics.SetRunning(false)
		if cerr := src.Close(); cerr != nil {
			logger.Warn("Runner", "Release source: %v", cerr)
		}
	}()
	defer func() {
		if p := recover(); p != nil {
			r.metrics.FrameErrors.Add(1)
			err = fmt.Errorf("frame loop: %v", p)
		}
	}()

	r.proc.ResetThroughput()
	logger.Info("Runner", "Capture started on device %d", r.index)

	failures := 0
	for {
		if ctx.Err() != nil {
			logger.Info("Runner", "Cancelled")
			return nil
		}

		started := time.Now()
		frame, err := src.Read()
		if errors.Is(err, source.ErrEndOfStream) {
			logger.Info("Runner", "End of stream")
			return nil
		}
		if err != nil {
			r.metrics.ReadErrors.Add(1)
			failures++
			if failures >= maxReadFailures {
				return fmt.Errorf("read frame: %w", err)
			}
			logger.Warn("Runner", "Read frame: %v", err)
			continue
		}
		failures = 0
		r.metrics.FramesRead.Add(1)

		annotated := r.proc.Process(frame)
		if err := r.display.Show(annotated.Frame); err != nil {
			return fmt.Errorf("display: %w", err)
		}
		r.metrics.FramesShown.Add(1)

		switch r.display.Poll() {
		case CommandQuit:
			logger.Info("Runner", "Quit requested")
			return nil
		case CommandSnapshot:
			r.snapshot(annotated.Frame)
		}

		if r.interval > 0 && !pace(ctx.Done(), started, r.interval) {
			return nil
		}
	}
}

func (r *Runner) snapshot(frame *types.Frame) {
	if r.snapshots == nil {
		logger.Warn("Runner", "Snapshot requested but no snapshot directory is configured")
		return
	}
	if _, err := r.snapshots.Save(frame); err != nil {
		r.metrics.SnapshotErrors.Add(1)
		logger.Error("Runner", "%v", err)
		return
	}
	r.metrics.SnapshotsSaved.Add(1)
}
