// Package app assembles the pipeline components described by a config.Config.
// Both binaries use it so the synchronous and producer/consumer modes share
// one set of stages.
package app

import (
	"errors"
	"fmt"
	"io"

	"github.com/dj-oyu/moodcam/internal/classify"
	"github.com/dj-oyu/moodcam/internal/config"
	"github.com/dj-oyu/moodcam/internal/detect"
	"github.com/dj-oyu/moodcam/internal/logger"
	"github.com/dj-oyu/moodcam/internal/metrics"
	"github.com/dj-oyu/moodcam/internal/onnx"
	"github.com/dj-oyu/moodcam/internal/opencv"
	"github.com/dj-oyu/moodcam/internal/overlay"
	"github.com/dj-oyu/moodcam/internal/pipeline"
	"github.com/dj-oyu/moodcam/internal/snapshot"
	"github.com/dj-oyu/moodcam/internal/source"
	"github.com/dj-oyu/moodcam/internal/throughput"
)

// App holds the shared stages. Close releases the model session and the
// cascade.
type App struct {
	Config    *config.Config
	Processor *pipeline.Processor
	Open      source.OpenFunc
	Snapshots *snapshot.Manager
	Metrics   *metrics.Metrics

	closers []io.Closer
}

// New loads the locator and model named by cfg. Any failure is fatal to
// startup.
func New(cfg *config.Config) (*App, error) {
	var closers []io.Closer
	cleanup := func() {
		for _, c := range closers {
			c.Close()
		}
	}

	locator, closer, err := NewLocator(cfg.Detector)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		closers = append(closers, closer)
	}

	md := classify.DefaultMetadata()
	if cfg.Model.MetadataPath != "" {
		md, err = classify.LoadMetadata(cfg.Model.MetadataPath)
		if err != nil {
			cleanup()
			return nil, err
		}
	}
	scorer, err := onnx.NewScorer(onnx.Config{
		ModelPath:     cfg.Model.Path,
		SharedLibrary: cfg.Model.SharedLibrary,
		Metadata:      md,
	})
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("load model %s: %w", cfg.Model.Path, err)
	}
	closers = append(closers, scorer)

	classifier, err := classify.NewFromMetadata(scorer, md)
	if err != nil {
		cleanup()
		return nil, err
	}

	a, err := Assemble(cfg, locator, classifier)
	if err != nil {
		cleanup()
		return nil, err
	}
	a.closers = closers
	logger.Info("App", "Model %s loaded (%d classes, %s)", cfg.Model.Path, len(md.Classes), md.Layout)
	return a, nil
}

// Assemble builds the processor, opener and snapshot manager around an
// already constructed locator and classifier.
func Assemble(cfg *config.Config, locator detect.Locator, classifier pipeline.Classifier) (*App, error) {
	renderer, err := overlay.NewRenderer(cfg.Overlay.FontSize)
	if err != nil {
		return nil, err
	}
	snaps, err := snapshot.NewManager(cfg.Snapshot.Dir, cfg.Snapshot.Format)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	proc, err := pipeline.NewProcessor(pipeline.ProcessorConfig{
		Locator:    locator,
		Classifier: classifier,
		Renderer:   renderer,
		Estimator:  throughput.New(cfg.Throughput.Batch, cfg.Throughput.Interval),
		Metrics:    m,
		Threshold:  cfg.Model.Threshold,
		ShowFPS:    cfg.Overlay.ShowFPS,
		ShowScores: cfg.Overlay.ShowScores,
	})
	if err != nil {
		return nil, err
	}

	return &App{
		Config:    cfg,
		Processor: proc,
		Open:      NewOpener(cfg.Camera),
		Snapshots: snaps,
		Metrics:   m,
	}, nil
}

// NewLocator returns the configured detector backend, wrapped in
// detect.Downscale when requested. The closer is nil for backends that hold
// no native resources.
func NewLocator(cfg config.DetectorConfig) (detect.Locator, io.Closer, error) {
	var (
		loc    detect.Locator
		closer io.Closer
	)
	switch cfg.Backend {
	case config.BackendPigo:
		p, err := detect.LoadPigoLocator(cfg.CascadePath, cfg.Params)
		if err != nil {
			return nil, nil, err
		}
		loc = p
	case config.BackendHaar:
		h, err := opencv.NewHaarLocator(cfg.CascadePath, cfg.Params)
		if err != nil {
			return nil, nil, err
		}
		loc, closer = h, h
	default:
		return nil, nil, fmt.Errorf("unknown detector backend %q", cfg.Backend)
	}
	logger.Info("App", "Detector %s (%s)", cfg.Backend, cfg.CascadePath)
	return detect.Downscale(loc, cfg.Downscale), closer, nil
}

// NewOpener returns the frame source for cfg: a replay directory when one is
// set, otherwise the OpenCV camera. Mirroring wraps either.
func NewOpener(cfg config.CameraConfig) source.OpenFunc {
	var open source.OpenFunc
	if cfg.ReplayDir != "" {
		open = source.OpenDir(cfg.ReplayDir, cfg.Loop)
	} else {
		open = opencv.Opener(cfg.Width, cfg.Height)
	}
	if cfg.Mirror {
		open = source.MirrorOpener(open)
	}
	return open
}

// Close releases native resources
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
