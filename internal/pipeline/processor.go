// Package pipeline wires frame capture, face location, classification and
// overlay rendering into the synchronous and producer/consumer run modes.
package pipeline

import (
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/disintegration/imaging"

	"github.com/dj-oyu/moodcam/internal/detect"
	"github.com/dj-oyu/moodcam/internal/logger"
	"github.com/dj-oyu/moodcam/internal/metrics"
	"github.com/dj-oyu/moodcam/internal/overlay"
	"github.com/dj-oyu/moodcam/internal/throughput"
	"github.com/dj-oyu/moodcam/pkg/types"
)

// Classifier scores a face crop
type Classifier interface {
	Classify(img image.Image) (types.Prediction, error)
}

// ProcessorConfig collects the per-frame stages. Renderer, Estimator and
// Metrics get defaults when nil.
type ProcessorConfig struct {
	Locator    detect.Locator
	Classifier Classifier
	Renderer   *overlay.Renderer
	Estimator  *throughput.Estimator
	Metrics    *metrics.Metrics
	Threshold  float64
	ShowFPS    bool
	ShowScores bool
}

// Processor annotates one frame at a time. It is driven by a single
// goroutine: the synchronous runner or the producer.
type Processor struct {
	locator    detect.Locator
	classifier Classifier
	renderer   *overlay.Renderer
	policy     overlay.ColorPolicy
	fps        *throughput.Estimator
	metrics    *metrics.Metrics
	showFPS    bool
	showScores bool
}

// NewProcessor validates cfg and fills defaults
func NewProcessor(cfg ProcessorConfig) (*Processor, error) {
	if cfg.Locator == nil {
		return nil, errors.New("pipeline: locator is required")
	}
	if cfg.Classifier == nil {
		return nil, errors.New("pipeline: classifier is required")
	}
	if cfg.Renderer == nil {
		r, err := overlay.NewRenderer(overlay.DefaultFontSize)
		if err != nil {
			return nil, fmt.Errorf("pipeline: %w", err)
		}
		cfg.Renderer = r
	}
	if cfg.Estimator == nil {
		cfg.Estimator = throughput.New(throughput.DefaultBatch, 0)
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New()
	}
	return &Processor{
		locator:    cfg.Locator,
		classifier: cfg.Classifier,
		renderer:   cfg.Renderer,
		policy:     overlay.NewColorPolicy(cfg.Threshold),
		fps:        cfg.Estimator,
		metrics:    cfg.Metrics,
		showFPS:    cfg.ShowFPS,
		showScores: cfg.ShowScores,
	}, nil
}

// Metrics returns the counters the processor updates
func (p *Processor) Metrics() *metrics.Metrics { return p.metrics }

// FPS returns the last throughput estimate
func (p *Processor) FPS() float64 { return p.fps.Rate() }

// ResetThroughput starts a fresh FPS window, called when a session starts
func (p *Processor) ResetThroughput() {
	p.fps.Reset()
	p.metrics.SetFPS(0)
}

// Process locates faces, classifies each on the unannotated pixels, then
// draws every successful result onto frame in place. A region whose
// classification fails is logged and skipped; the frame still completes.
func (p *Processor) Process(frame *types.Frame) *types.AnnotatedFrame {
	started := time.Now()

	regions := detect.Normalize(p.locator.Locate(frame), frame.Bounds())
	p.metrics.RegionsLocated.Add(uint64(len(regions)))

	results := make([]types.AnnotatedResult, 0, len(regions))
	for i, region := range regions {
		crop := imaging.Crop(frame.Image, region.Rect().Intersect(frame.Bounds()))
		pred, err := p.classify(crop)
		if err != nil {
			p.metrics.ClassificationErrors.Add(1)
			logger.Warn("Processor", "Frame %d region %d %+v: %v", frame.Seq, i, region, err)
			continue
		}
		label, confidence, ok := pred.Dominant()
		if !ok {
			p.metrics.ClassificationErrors.Add(1)
			logger.Warn("Processor", "Frame %d region %d: empty prediction", frame.Seq, i)
			continue
		}
		logger.Debug("Processor", "Frame %d region %d: %s", frame.Seq, i, overlay.ScoreLine(pred))
		results = append(results, types.AnnotatedResult{
			Region:     region,
			Label:      label,
			Confidence: confidence,
			Prediction: pred,
		})
	}
	p.metrics.RegionsClassified.Add(uint64(len(results)))

	for _, res := range results {
		p.renderer.Draw(frame.Image, res.Region, res.Label, res.Confidence, p.policy.Color(res.Confidence))
	}
	if p.showScores && len(results) > 0 {
		p.renderer.DrawScores(frame.Image, largest(results).Prediction)
	}

	if p.fps.Tick() {
		p.metrics.SetFPS(p.fps.Rate())
		logger.Debug("Processor", "FPS: %.1f", p.fps.Rate())
	}
	fps := p.fps.Rate()
	if p.showFPS {
		p.renderer.DrawFPS(frame.Image, fps)
	}

	p.metrics.FramesAnnotated.Add(1)
	p.metrics.UpdateProcessLatency(time.Since(started))

	return &types.AnnotatedFrame{Frame: frame, Results: results, FPS: fps}
}

func largest(results []types.AnnotatedResult) types.AnnotatedResult {
	best := results[0]
	for _, r := range results[1:] {
		if r.Region.Area() > best.Region.Area() {
			best = r
		}
	}
	return best
}

// classify turns a panicking classifier into an error so only that region
// is skipped.
func (p *Processor) classify(crop image.Image) (pred types.Prediction, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("classifier panic: %v", r)
		}
	}()
	return p.classifier.Classify(crop)
}
