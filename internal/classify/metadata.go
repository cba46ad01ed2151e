package classify

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dj-oyu/moodcam/pkg/types"
)

// Layout is the tensor memory order expected by the model input.
type Layout string

const (
	NHWC Layout = "NHWC" // batch, height, width, channels (Keras default)
	NCHW Layout = "NCHW" // batch, channels, height, width (PyTorch export)
)

// DefaultImageSize is the square input edge of the FER-style models.
const DefaultImageSize = 48

// Metadata describes a model file: tensor shapes, tensor names and the class
// order of its output vector.
type Metadata struct {
	InputShape  []int64  `json:"input_shape"`
	OutputShape []int64  `json:"output_shape"`
	Classes     []string `json:"classes"`
	ImageSize   int      `json:"image_size"`
	Layout      Layout   `json:"layout,omitempty"`
	InputName   string   `json:"input_name,omitempty"`
	OutputName  string   `json:"output_name,omitempty"`
	Softmax     bool     `json:"softmax,omitempty"`
}

// DefaultMetadata matches a 48x48 RGB NHWC model with seven outputs in
// canonical label order.
func DefaultMetadata() Metadata {
	classes := make([]string, 0, types.NumLabels)
	for _, l := range types.Labels() {
		classes = append(classes, l.String())
	}
	return Metadata{
		InputShape:  []int64{1, DefaultImageSize, DefaultImageSize, 3},
		OutputShape: []int64{1, types.NumLabels},
		Classes:     classes,
		ImageSize:   DefaultImageSize,
		Layout:      NHWC,
		InputName:   "input",
		OutputName:  "output",
	}
}

// LoadMetadata reads a metadata JSON file. Missing optional fields are
// filled from DefaultMetadata.
func LoadMetadata(path string) (Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to read metadata: %w", err)
	}

	md := Metadata{}
	if err := json.Unmarshal(data, &md); err != nil {
		return Metadata{}, fmt.Errorf("failed to parse metadata: %w", err)
	}

	def := DefaultMetadata()
	if md.Layout == "" {
		md.Layout = def.Layout
	}
	if md.InputName == "" {
		md.InputName = def.InputName
	}
	if md.OutputName == "" {
		md.OutputName = def.OutputName
	}
	if len(md.Classes) == 0 {
		md.Classes = def.Classes
	}
	if len(md.InputShape) == 0 {
		size := md.ImageSize
		if size <= 0 {
			size = DefaultImageSize
		}
		md.InputShape = []int64{1, int64(size), int64(size), 3}
		if md.Layout == NCHW {
			md.InputShape = []int64{1, 3, int64(size), int64(size)}
		}
	}
	if len(md.OutputShape) == 0 {
		md.OutputShape = []int64{1, int64(len(md.Classes))}
	}

	if _, err := md.Geometry(); err != nil {
		return Metadata{}, err
	}
	if _, err := md.Labels(); err != nil {
		return Metadata{}, err
	}
	return md, nil
}

// Geometry derives the classifier input geometry from InputShape
func (m Metadata) Geometry() (Geometry, error) {
	if len(m.InputShape) != 4 {
		return Geometry{}, fmt.Errorf("input shape %v: want 4 dimensions", m.InputShape)
	}
	g := Geometry{Layout: m.Layout}
	switch m.Layout {
	case NHWC, "":
		g.Layout = NHWC
		g.Height, g.Width, g.Channels = int(m.InputShape[1]), int(m.InputShape[2]), int(m.InputShape[3])
	case NCHW:
		g.Channels, g.Height, g.Width = int(m.InputShape[1]), int(m.InputShape[2]), int(m.InputShape[3])
	default:
		return Geometry{}, fmt.Errorf("unsupported layout %q", m.Layout)
	}
	if err := g.Validate(); err != nil {
		return Geometry{}, err
	}
	return g, nil
}

// Labels maps Classes onto the closed label enumeration. Every class must
// be a known label and appear once.
func (m Metadata) Labels() ([]types.Label, error) {
	if len(m.Classes) == 0 {
		return nil, fmt.Errorf("metadata lists no classes")
	}
	seen := make(map[types.Label]bool, len(m.Classes))
	labels := make([]types.Label, len(m.Classes))
	for i, name := range m.Classes {
		l, err := types.ParseLabel(name)
		if err != nil {
			return nil, fmt.Errorf("class %d: %w", i, err)
		}
		if seen[l] {
			return nil, fmt.Errorf("class %q listed twice", name)
		}
		seen[l] = true
		labels[i] = l
	}
	if n := len(m.OutputShape); n > 0 && m.OutputShape[n-1] != int64(len(labels)) {
		return nil, fmt.Errorf("output shape %v does not match %d classes", m.OutputShape, len(labels))
	}
	return labels, nil
}
