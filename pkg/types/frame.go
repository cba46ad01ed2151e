package types

import (
	"image"
	"time"
)

// Frame is a single captured image in display color order (RGB).
// A Frame is owned by exactly one stage at a time; the producer never touches
// it again after publishing.
type Frame struct {
	Image     *image.NRGBA // Pixel data, origin at (0,0)
	Seq       uint64       // Sequential frame number within a session
	Timestamp time.Time    // Capture time
}

// NewFrame wraps img, rebasing its bounds to the origin when needed.
func NewFrame(img *image.NRGBA, seq uint64, ts time.Time) *Frame {
	if img.Rect.Min != (image.Point{}) {
		img = &image.NRGBA{
			Pix:    img.Pix,
			Stride: img.Stride,
			Rect:   image.Rect(0, 0, img.Rect.Dx(), img.Rect.Dy()),
		}
	}
	return &Frame{Image: img, Seq: seq, Timestamp: ts}
}

// Width returns the frame width in pixels
func (f *Frame) Width() int { return f.Image.Rect.Dx() }

// Height returns the frame height in pixels
func (f *Frame) Height() int { return f.Image.Rect.Dy() }

// Bounds returns the frame rectangle
func (f *Frame) Bounds() image.Rectangle { return f.Image.Rect }

// Clone returns a deep copy of the frame
func (f *Frame) Clone() *Frame {
	pix := make([]uint8, len(f.Image.Pix))
	copy(pix, f.Image.Pix)
	return &Frame{
		Image: &image.NRGBA{
			Pix:    pix,
			Stride: f.Image.Stride,
			Rect:   f.Image.Rect,
		},
		Seq:       f.Seq,
		Timestamp: f.Timestamp,
	}
}

// Region is an axis-aligned rectangle in frame pixel coordinates.
type Region struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Rect converts the region to an image.Rectangle
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.W, r.Y+r.H)
}

// Area returns W*H, or 0 for degenerate regions
func (r Region) Area() int {
	if r.W <= 0 || r.H <= 0 {
		return 0
	}
	return r.W * r.H
}

// AnnotatedResult is the outcome for one located and classified region.
type AnnotatedResult struct {
	Region     Region     `json:"region"`
	Label      Label      `json:"label"`
	Confidence float64    `json:"confidence"`
	Prediction Prediction `json:"scores"`
}

// AnnotatedFrame is a frame with its overlays drawn, as handed from the
// producer to the consumer.
type AnnotatedFrame struct {
	Frame   *Frame
	Results []AnnotatedResult
	FPS     float64
}
