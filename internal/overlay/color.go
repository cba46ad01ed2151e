package overlay

import (
	"image/color"
)

var (
	Green  = color.NRGBA{R: 0, G: 255, B: 0, A: 255}
	Yellow = color.NRGBA{R: 255, G: 255, B: 0, A: 255}
	Gray   = color.NRGBA{R: 80, G: 80, B: 80, A: 255}
	White  = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
)

// DefaultThreshold separates reliable from uncertain predictions.
const DefaultThreshold = 0.4

// ColorPolicy picks the annotation color for a confidence value.
type ColorPolicy struct {
	Threshold float64
	Reliable  color.NRGBA
	Uncertain color.NRGBA
}

// NewColorPolicy returns green above threshold and yellow at or below it
func NewColorPolicy(threshold float64) ColorPolicy {
	return ColorPolicy{
		Threshold: threshold,
		Reliable:  Green,
		Uncertain: Yellow,
	}
}

// Color returns Reliable when confidence > Threshold
func (p ColorPolicy) Color(confidence float64) color.NRGBA {
	if confidence > p.Threshold {
		return p.Reliable
	}
	return p.Uncertain
}
