// Package classify turns a face crop into a per-label emotion distribution
// by running an opaque scoring model.
package classify

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/nfnt/resize"

	"github.com/dj-oyu/moodcam/pkg/types"
)

// ErrClassification marks a per-region failure. The pipeline skips the
// region and keeps going.
var ErrClassification = errors.New("classification failed")

// Scorer runs the model on one preprocessed input vector and returns the raw
// output vector.
type Scorer interface {
	Score(input []float32) ([]float32, error)
}

// ScorerFunc adapts a function to Scorer
type ScorerFunc func(input []float32) ([]float32, error)

// Score calls f(input)
func (f ScorerFunc) Score(input []float32) ([]float32, error) { return f(input) }

// Geometry is the model input size and memory layout.
type Geometry struct {
	Width    int
	Height   int
	Channels int // 1 (grayscale) or 3 (RGB)
	Layout   Layout
}

// Validate checks that the geometry can be produced by Preprocess
func (g Geometry) Validate() error {
	if g.Width <= 0 || g.Height <= 0 {
		return fmt.Errorf("invalid input size %dx%d", g.Width, g.Height)
	}
	if g.Channels != 1 && g.Channels != 3 {
		return fmt.Errorf("unsupported channel count %d", g.Channels)
	}
	if g.Layout != NHWC && g.Layout != NCHW {
		return fmt.Errorf("unsupported layout %q", g.Layout)
	}
	return nil
}

// Len is the number of float32 values in one input tensor
func (g Geometry) Len() int { return g.Width * g.Height * g.Channels }

// Classifier adapts a Scorer to images: resize, normalize, score, map to labels.
type Classifier struct {
	scorer   Scorer
	geometry Geometry
	labels   []types.Label
	softmax  bool
}

// New returns a classifier. labels[i] names output index i. Set softmax when
// the model emits logits instead of probabilities.
func New(scorer Scorer, geometry Geometry, labels []types.Label, softmax bool) (*Classifier, error) {
	if scorer == nil {
		return nil, errors.New("classify: nil scorer")
	}
	if err := geometry.Validate(); err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}
	if len(labels) == 0 {
		return nil, errors.New("classify: no labels")
	}
	return &Classifier{
		scorer:   scorer,
		geometry: geometry,
		labels:   append([]types.Label(nil), labels...),
		softmax:  softmax,
	}, nil
}

// NewFromMetadata builds a classifier whose geometry and labels come from md
func NewFromMetadata(scorer Scorer, md Metadata) (*Classifier, error) {
	g, err := md.Geometry()
	if err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}
	labels, err := md.Labels()
	if err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}
	return New(scorer, g, labels, md.Softmax)
}

// Geometry returns the model input geometry
func (c *Classifier) Geometry() Geometry { return c.geometry }

// Classify scores one face crop. Every returned score is in [0, 1]. Errors
// wrap ErrClassification.
func (c *Classifier) Classify(img image.Image) (types.Prediction, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: empty crop", ErrClassification)
	}

	out, err := c.scorer.Score(Preprocess(img, c.geometry))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrClassification, err)
	}
	if len(out) < len(c.labels) {
		return nil, fmt.Errorf("%w: model returned %d scores for %d labels", ErrClassification, len(out), len(c.labels))
	}

	scores := make([]float64, len(c.labels))
	for i := range scores {
		v := float64(out[i])
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: non-finite score for %s", ErrClassification, c.labels[i])
		}
		scores[i] = v
	}
	if c.softmax {
		softmax(scores)
	}

	pred := make(types.Prediction, len(c.labels))
	for i, l := range c.labels {
		pred[l] = clamp01(scores[i])
	}
	return pred, nil
}

// Preprocess resizes img to the geometry and scales pixel values to [0, 1]
// in the requested layout. Grayscale inputs use ITU-R BT.601 luma.
func Preprocess(img image.Image, g Geometry) []float32 {
	resized := resize.Resize(uint(g.Width), uint(g.Height), img, resize.Bilinear)
	b := resized.Bounds()
	plane := g.Width * g.Height
	data := make([]float32, g.Len())

	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			r, gr, bl, _ := resized.At(b.Min.X+x, b.Min.Y+y).RGBA()
			rgb := [3]float32{float32(r) / 65535.0, float32(gr) / 65535.0, float32(bl) / 65535.0}
			px := y*g.Width + x

			if g.Channels == 1 {
				data[px] = 0.299*rgb[0] + 0.587*rgb[1] + 0.114*rgb[2]
				continue
			}
			for ch := 0; ch < 3; ch++ {
				if g.Layout == NCHW {
					data[ch*plane+px] = rgb[ch]
				} else {
					data[px*3+ch] = rgb[ch]
				}
			}
		}
	}
	return data
}

func softmax(v []float64) {
	maxV := math.Inf(-1)
	for _, x := range v {
		maxV = math.Max(maxV, x)
	}
	sum := 0.0
	for i, x := range v {
		v[i] = math.Exp(x - maxV)
		sum += v[i]
	}
	for i := range v {
		v[i] /= sum
	}
}

func clamp01(v float64) float64 {
	return math.Min(math.Max(v, 0), 1)
}
