// Package overlay draws per-face annotations (box, label, confidence bar)
// and the frame HUD onto annotated frames.
package overlay

import (
	"image"

	"github.com/dj-oyu/moodcam/pkg/types"
)

const (
	BoxThickness = 2
	BarHeight    = 18
	BarMinWidth  = 60
	BarMaxWidth  = 200

	labelGap    = 10 // between region edge and label baseline
	barGap      = 8  // between region bottom and bar top
	barAboveGap = 12 // between bar bottom and region top when flipped above
	bottomPad   = 5
	edgePad     = 10
)

// Placement is where the label and confidence bar go for one region.
// TextX/TextY is the text origin: left edge and baseline.
type Placement struct {
	TextX int
	TextY int
	Bar   image.Rectangle
}

// BarWidth is the full width of the bar outline
func (p Placement) BarWidth() int { return p.Bar.Dx() }

// Layout positions the label text and confidence bar for region inside a
// frame of the given size. text is the measured label size (width, ascent)
// and baseline the descent below the text origin.
//
// The label sits above the region when there is room and below it
// otherwise. The bar goes under the region and flips above when it would
// run off the bottom edge.
func Layout(frame image.Point, region types.Region, text image.Point, baseline int) Placement {
	textX := min(region.X, frame.X-text.X)
	textX = max(textX, 0)

	textY := region.Y - labelGap
	if textY <= text.Y {
		textY = min(frame.Y-baseline-bottomPad, region.Y+region.H+text.Y+labelGap)
	}

	barW := clampInt(frame.X-textX-edgePad, BarMinWidth, BarMaxWidth)
	barY := region.Y + region.H + barGap
	if barY+BarHeight+baseline > frame.Y {
		barY = max(edgePad, region.Y-BarHeight-barAboveGap)
	}

	return Placement{
		TextX: textX,
		TextY: textY,
		Bar:   image.Rect(textX, barY, textX+barW, barY+BarHeight),
	}
}

// FillWidth is the filled portion of a bar of width w for confidence c.
// c is clamped to [0, 1]; NaN fills nothing.
func FillWidth(w int, c float64) int {
	return int(float64(w) * clamp01(c))
}

func clamp01(v float64) float64 {
	if !(v > 0) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampInt(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
