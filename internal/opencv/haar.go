package opencv

import (
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"github.com/dj-oyu/moodcam/internal/detect"
	"github.com/dj-oyu/moodcam/pkg/types"
)

// HaarLocator finds faces with an OpenCV Haar cascade
type HaarLocator struct {
	mu      sync.Mutex
	cascade gocv.CascadeClassifier
	params  detect.Params
	minSize image.Point
	maxSize image.Point
}

// NewHaarLocator loads the cascade XML at path
func NewHaarLocator(path string, params detect.Params) (*HaarLocator, error) {
	cascade := gocv.NewCascadeClassifier()
	if !cascade.Load(path) {
		cascade.Close()
		return nil, fmt.Errorf("load cascade %s", path)
	}
	return &HaarLocator{
		cascade: cascade,
		params:  params,
		minSize: image.Pt(params.MinSize, params.MinSize),
		maxSize: image.Pt(params.MaxSize, params.MaxSize),
	}, nil
}

// Locate converts the frame to grayscale and runs the cascade
func (h *HaarLocator) Locate(frame *types.Frame) []types.Region {
	rgba, err := gocv.ImageToMatRGBA(frame.Image)
	if err != nil {
		return nil
	}
	defer rgba.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(rgba, &gray, gocv.ColorRGBAToGray)

	h.mu.Lock()
	rects := h.cascade.DetectMultiScaleWithParams(gray, h.params.ScaleFactor, h.params.MinNeighbors, 0, h.minSize, h.maxSize)
	h.mu.Unlock()

	regions := make([]types.Region, 0, len(rects))
	for _, r := range rects {
		regions = append(regions, types.Region{X: r.Min.X, Y: r.Min.Y, W: r.Dx(), H: r.Dy()})
	}
	return detect.Normalize(regions, frame.Bounds())
}

// Close frees the cascade
func (h *HaarLocator) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cascade.Close()
}
