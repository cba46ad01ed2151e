package detect

import (
	"fmt"
	"os"

	pigo "github.com/esimov/pigo/core"

	"github.com/dj-oyu/moodcam/pkg/types"
)

// PigoLocator runs a pigo pixel-intensity-comparison cascade. Pure Go, so
// it works without OpenCV.
type PigoLocator struct {
	classifier *pigo.Pigo
	params     Params
}

// LoadPigoLocator reads and unpacks a cascade file (e.g. "facefinder")
func LoadPigoLocator(path string, params Params) (*PigoLocator, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading the cascade file: %w", err)
	}
	return NewPigoLocator(data, params)
}

// NewPigoLocator unpacks an in-memory cascade
func NewPigoLocator(cascade []byte, params Params) (*PigoLocator, error) {
	classifier, err := pigo.NewPigo().Unpack(cascade)
	if err != nil {
		return nil, fmt.Errorf("error unpacking the cascade file: %w", err)
	}
	return &PigoLocator{classifier: classifier, params: params}, nil
}

// Locate converts the frame to grayscale, runs the cascade and keeps
// clusters backed by at least MinNeighbors raw detections.
func (l *PigoLocator) Locate(frame *types.Frame) []types.Region {
	cols, rows := frame.Width(), frame.Height()
	maxSize := l.params.MaxSize
	if maxSize <= 0 {
		maxSize = min(cols, rows)
	}

	cParams := pigo.CascadeParams{
		MinSize:     l.params.MinSize,
		MaxSize:     maxSize,
		ShiftFactor: l.params.ShiftFactor,
		ScaleFactor: l.params.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: pigo.RgbToGrayscale(frame.Image),
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	raw := l.classifier.RunCascade(cParams, 0.0)
	clusters := l.classifier.ClusterDetections(raw, l.params.IoU)
	regions := groupDetections(raw, clusters, l.params)
	return Normalize(regions, frame.Bounds())
}

// groupDetections keeps clusters whose quality reaches MinQuality and that
// overlap at least MinNeighbors raw detections.
func groupDetections(raw, clusters []pigo.Detection, params Params) []types.Region {
	var regions []types.Region
	for _, c := range clusters {
		if float64(c.Q) < params.MinQuality {
			continue
		}
		if params.MinNeighbors > 0 {
			neighbors := 0
			for _, d := range raw {
				if iou(c, d) > params.IoU {
					neighbors++
				}
			}
			if neighbors < params.MinNeighbors {
				continue
			}
		}
		regions = append(regions, toRegion(c))
	}
	return regions
}

func toRegion(d pigo.Detection) types.Region {
	half := d.Scale / 2
	return types.Region{X: d.Col - half, Y: d.Row - half, W: d.Scale, H: d.Scale}
}

func iou(a, b pigo.Detection) float64 {
	ra, rb := toRegion(a).Rect(), toRegion(b).Rect()
	inter := ra.Intersect(rb)
	if inter.Empty() {
		return 0
	}
	i := float64(inter.Dx() * inter.Dy())
	u := float64(ra.Dx()*ra.Dy()+rb.Dx()*rb.Dy()) - i
	return i / u
}
