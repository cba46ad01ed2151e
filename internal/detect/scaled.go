package detect

import (
	"math"

	"github.com/disintegration/imaging"

	"github.com/dj-oyu/moodcam/pkg/types"
)

type downscaled struct {
	inner  Locator
	factor float64
}

// Downscale runs inner on a copy of the frame resized by factor and maps
// the regions back to full-frame coordinates. A factor outside (0, 1)
// returns inner unchanged.
func Downscale(inner Locator, factor float64) Locator {
	if factor <= 0 || factor >= 1 {
		return inner
	}
	return &downscaled{inner: inner, factor: factor}
}

func (d *downscaled) Locate(frame *types.Frame) []types.Region {
	w := max(1, int(math.Round(float64(frame.Width())*d.factor)))
	h := max(1, int(math.Round(float64(frame.Height())*d.factor)))
	small := types.NewFrame(imaging.Resize(frame.Image, w, h, imaging.Linear), frame.Seq, frame.Timestamp)

	regions := d.inner.Locate(small)
	sx := float64(frame.Width()) / float64(w)
	sy := float64(frame.Height()) / float64(h)
	for i, r := range regions {
		regions[i] = types.Region{
			X: int(math.Round(float64(r.X) * sx)),
			Y: int(math.Round(float64(r.Y) * sy)),
			W: int(math.Round(float64(r.W) * sx)),
			H: int(math.Round(float64(r.H) * sy)),
		}
	}
	return Normalize(regions, frame.Bounds())
}
