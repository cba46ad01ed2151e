// Package opencv provides the OpenCV-backed capture device, Haar cascade
// locator and preview window.
package opencv

import (
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"gocv.io/x/gocv"

	"github.com/dj-oyu/moodcam/internal/logger"
	"github.com/dj-oyu/moodcam/internal/source"
	"github.com/dj-oyu/moodcam/pkg/types"
)

// Camera reads frames from a local capture device
type Camera struct {
	mu     sync.Mutex
	vc     *gocv.VideoCapture
	mat    gocv.Mat
	size   image.Point // requested output size, zero keeps the native size
	seq    uint64
	closed bool
}

// OpenCamera opens device index and asks the driver for width x height.
// Drivers that ignore the request are resized in software.
func OpenCamera(index, width, height int) (*Camera, error) {
	vc, err := gocv.OpenVideoCapture(index)
	if err != nil {
		return nil, fmt.Errorf("%w: device %d: %v", source.ErrDeviceUnavailable, index, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("%w: device %d", source.ErrDeviceUnavailable, index)
	}
	if width > 0 && height > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(width))
		vc.Set(gocv.VideoCaptureFrameHeight, float64(height))
	}
	logger.Info("Camera", "Opened device %d (%.0fx%.0f)", index,
		vc.Get(gocv.VideoCaptureFrameWidth), vc.Get(gocv.VideoCaptureFrameHeight))

	return &Camera{
		vc:   vc,
		mat:  gocv.NewMat(),
		size: image.Pt(width, height),
	}, nil
}

// Opener returns a source.OpenFunc producing width x height cameras
func Opener(width, height int) source.OpenFunc {
	return func(index int) (source.Source, error) {
		return OpenCamera(index, width, height)
	}
}

// Read grabs the next frame. A failed grab on an open device is reported as
// end of stream, matching how capture drivers signal an unplugged camera.
func (c *Camera) Read() (*types.Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, source.ErrEndOfStream
	}
	if ok := c.vc.Read(&c.mat); !ok || c.mat.Empty() {
		return nil, source.ErrEndOfStream
	}

	mat := c.mat
	if c.size.X > 0 && c.size.Y > 0 && (mat.Cols() != c.size.X || mat.Rows() != c.size.Y) {
		resized := gocv.NewMat()
		defer resized.Close()
		gocv.Resize(mat, &resized, c.size, 0, 0, gocv.InterpolationLinear)
		mat = resized
	}

	img, err := mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("convert frame: %w", err)
	}
	c.seq++
	return types.NewFrame(imaging.Clone(img), c.seq, time.Now()), nil
}

// Close releases the device. It waits for an in-flight Read.
func (c *Camera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.mat.Close()
	return c.vc.Close()
}
