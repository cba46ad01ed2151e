package pipeline

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dj-oyu/moodcam/internal/logger"
	"github.com/dj-oyu/moodcam/internal/metrics"
	"github.com/dj-oyu/moodcam/internal/snapshot"
	"github.com/dj-oyu/moodcam/internal/source"
	"github.com/dj-oyu/moodcam/pkg/types"
)

var (
	ErrAlreadyRunning = errors.New("pipeline already running")
	ErrNotRunning     = errors.New("pipeline not running")
	ErrNoFrame        = errors.New("no frame available")
)

// State is the controller lifecycle: idle -> running -> stopped -> running ...
type State int

const (
	StateIdle State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "idle"
	}
}

// Status is a point-in-time view for user interfaces
type Status struct {
	State        string                  `json:"state"`
	FPS          float64                 `json:"fps"`
	Frames       uint64                  `json:"frames"`
	Seq          uint64                  `json:"seq"`
	Results      []types.AnnotatedResult `json:"results"`
	LastSnapshot string                  `json:"last_snapshot,omitempty"`
	LastError    string                  `json:"last_error,omitempty"`
}

// ControllerConfig configures the producer/consumer mode
type ControllerConfig struct {
	Open          source.OpenFunc
	DeviceIndex   int
	Processor     *Processor
	Snapshots     *snapshot.Manager
	FrameInterval time.Duration
}

// Controller runs one producer goroutine that captures and annotates frames
// into a Slot. The consumer (a display loop) takes frames from the slot on
// its own schedule. Start, Stop, Snapshot and Status may be called from any
// goroutine.
type Controller struct {
	open      source.OpenFunc
	index     int
	proc      *Processor
	slot      *Slot
	snapshots *snapshot.Manager
	interval  time.Duration
	metrics   *metrics.Metrics

	mu      sync.Mutex // serializes lifecycle transitions
	state   State
	src     source.Source
	stop    chan struct{}
	done    chan struct{}
	exitErr error // written by the producer before done closes
	lastErr error

	running atomic.Bool // producer keeps looping while true
	frames  atomic.Uint64
}

// NewController returns an idle controller
func NewController(cfg ControllerConfig) (*Controller, error) {
	if cfg.Open == nil || cfg.Processor == nil {
		return nil, errors.New("pipeline: controller needs an opener and a processor")
	}
	m := cfg.Processor.Metrics()
	return &Controller{
		open:      cfg.Open,
		index:     cfg.DeviceIndex,
		proc:      cfg.Processor,
		slot:      NewSlot(m),
		snapshots: cfg.Snapshots,
		interval:  cfg.FrameInterval,
		metrics:   m,
	}, nil
}

// Start opens the source and launches the producer. An open failure leaves
// the state unchanged and is returned.
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateRunning {
		select {
		case <-c.done:
			c.finishLocked()
		default:
			return ErrAlreadyRunning
		}
	}

	src, err := c.open(c.index)
	if err != nil {
		return fmt.Errorf("open source %d: %w", c.index, err)
	}

	c.src = src
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	c.exitErr = nil
	c.lastErr = nil
	c.frames.Store(0)
	c.slot.Clear()
	c.proc.ResetThroughput()

	c.running.Store(true)
	c.state = StateRunning
	c.metrics.SetRunning(true)

	go c.produce(src, c.stop, c.done)

	logger.Info("Controller", "Started on device %d", c.index)
	return nil
}

// Stop signals the producer, waits for it to exit and then releases the
// source. It returns only after the producer has stopped touching the
// source.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateRunning {
		return ErrNotRunning
	}

	requested := c.running.CompareAndSwap(true, false)
	close(c.stop)
	<-c.done

	var err error
	if requested {
		err = c.src.Close()
	}
	c.finishLocked()
	logger.Info("Controller", "Stopped after %d frames", c.frames.Load())
	return err
}

// finishLocked records the end of a session. The producer must have exited.
func (c *Controller) finishLocked() {
	c.lastErr = c.exitErr
	c.src = nil
	c.state = StateStopped
	c.slot.Clear()
	c.metrics.SetRunning(false)
}

// Close stops a running session. Safe to call in any state.
func (c *Controller) Close() error {
	err := c.Stop()
	if errors.Is(err, ErrNotRunning) {
		return nil
	}
	return err
}

// produce is the producer loop. It owns src until it exits; when it ends on
// its own (end of stream, repeated read failures, panic) it releases src
// itself.
func (c *Controller) produce(src source.Source, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer func() {
		if p := recover(); p != nil {
			c.metrics.FrameErrors.Add(1)
			c.exitErr = fmt.Errorf("producer: %v", p)
			logger.Error("Controller", "%v", c.exitErr)
		}
		if c.running.CompareAndSwap(true, false) {
			if err := src.Close(); err != nil {
				logger.Warn("Controller", "Release source: %v", err)
			}
			c.metrics.SetRunning(false)
			logger.Info("Controller", "Capture ended: %v", c.exitErr)
		}
	}()

	failures := 0
	for c.running.Load() {
		started := time.Now()
		frame, err := src.Read()
		if errors.Is(err, source.ErrEndOfStream) {
			c.exitErr = source.ErrEndOfStream
			return
		}
		if err != nil {
			c.metrics.ReadErrors.Add(1)
			failures++
			if failures >= maxReadFailures {
				c.exitErr = fmt.Errorf("read frame: %w", err)
				return
			}
			logger.Warn("Controller", "Read frame: %v", err)
			continue
		}
		failures = 0
		if !c.running.Load() {
			return
		}
		c.metrics.FramesRead.Add(1)

		c.slot.Publish(c.proc.Process(frame))
		c.frames.Add(1)

		if c.interval > 0 && !pace(stop, started, c.interval) {
			return
		}
	}
}

// Take hands the consumer the newest frame published since its last Take
func (c *Controller) Take() (*types.AnnotatedFrame, bool) {
	return c.slot.Take()
}

// Latest returns the newest published frame without consuming it
func (c *Controller) Latest() (*types.AnnotatedFrame, bool) {
	return c.slot.Peek()
}

// Snapshot saves the most recent annotated frame
func (c *Controller) Snapshot() (string, error) {
	if c.snapshots == nil {
		return "", errors.New("snapshots are not configured")
	}
	af, ok := c.slot.Peek()
	if !ok {
		return "", ErrNoFrame
	}
	path, err := c.snapshots.Save(af.Frame)
	if err != nil {
		c.metrics.SnapshotErrors.Add(1)
		return "", err
	}
	c.metrics.SnapshotsSaved.Add(1)
	return path, nil
}

// Status reports the lifecycle state and latest results
func (c *Controller) Status() Status {
	c.mu.Lock()
	st := Status{State: c.state.String()}
	lastErr := c.lastErr
	if c.state == StateRunning {
		select {
		case <-c.done:
			st.State = StateStopped.String()
			lastErr = c.exitErr
		default:
		}
	}
	c.mu.Unlock()

	if lastErr != nil {
		st.LastError = lastErr.Error()
	}
	st.FPS = c.proc.FPS()
	st.Frames = c.frames.Load()
	if af, ok := c.slot.Peek(); ok {
		st.Seq = af.Frame.Seq
		st.Results = af.Results
	}
	if c.snapshots != nil {
		st.LastSnapshot = c.snapshots.Last()
	}
	return st
}
