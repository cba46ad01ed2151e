// Package detect finds candidate face regions in frames.
package detect

import (
	"image"

	"github.com/dj-oyu/moodcam/pkg/types"
)

// Locator returns face regions in frame pixel coordinates. Implementations
// are pure with respect to the frame: they never draw on it.
type Locator interface {
	Locate(frame *types.Frame) []types.Region
}

// LocatorFunc adapts a function to Locator
type LocatorFunc func(frame *types.Frame) []types.Region

// Locate calls f(frame)
func (f LocatorFunc) Locate(frame *types.Frame) []types.Region { return f(frame) }

// Params tune the cascade search. ScaleFactor, MinNeighbors and MinSize
// carry the same meaning for every backend; the rest are pigo specific.
type Params struct {
	ScaleFactor  float64 `yaml:"scale_factor"`
	MinNeighbors int     `yaml:"min_neighbors"`
	MinSize      int     `yaml:"min_size"`
	MaxSize      int     `yaml:"max_size"` // 0 = shorter frame side
	ShiftFactor  float64 `yaml:"shift_factor"`
	IoU          float64 `yaml:"iou"`
	MinQuality   float64 `yaml:"min_quality"`
}

// DefaultParams returns the detector settings used for webcam-distance faces
func DefaultParams() Params {
	return Params{
		ScaleFactor:  1.2,
		MinNeighbors: 5,
		MinSize:      80,
		ShiftFactor:  0.1,
		IoU:          0.2,
		MinQuality:   5.0,
	}
}

// Normalize clamps negative origins to zero (shrinking the region by the
// same amount) and drops regions with no area left or that lie entirely
// outside bounds. Regions may still extend past the right or bottom edge.
func Normalize(regions []types.Region, bounds image.Rectangle) []types.Region {
	out := regions[:0:0]
	for _, r := range regions {
		if r.X < bounds.Min.X {
			r.W -= bounds.Min.X - r.X
			r.X = bounds.Min.X
		}
		if r.Y < bounds.Min.Y {
			r.H -= bounds.Min.Y - r.Y
			r.Y = bounds.Min.Y
		}
		if r.W <= 0 || r.H <= 0 {
			continue
		}
		if !r.Rect().Overlaps(bounds) {
			continue
		}
		out = append(out, r)
	}
	return out
}
