// Package source defines where frames come from.
package source

import (
	"errors"

	"github.com/disintegration/imaging"

	"github.com/dj-oyu/moodcam/pkg/types"
)

var (
	// ErrDeviceUnavailable is returned by an opener when the capture device
	// cannot be opened. Fatal at startup.
	ErrDeviceUnavailable = errors.New("capture device unavailable")

	// ErrEndOfStream is returned by Read once no more frames will arrive,
	// including after Close. The pipeline treats it as a clean exit.
	ErrEndOfStream = errors.New("end of stream")
)

// Source yields frames of a fixed size in display color order. Read blocks
// until a frame is available. Close releases the device, may be called while
// a Read is in flight, and is idempotent.
type Source interface {
	Read() (*types.Frame, error)
	Close() error
}

// OpenFunc opens the source with the given device index.
type OpenFunc func(index int) (Source, error)

type mirrored struct {
	Source
}

// Mirror flips every frame horizontally right after it is read, so the
// preview behaves like a mirror.
func Mirror(src Source) Source {
	return &mirrored{Source: src}
}

func (m *mirrored) Read() (*types.Frame, error) {
	frame, err := m.Source.Read()
	if err != nil {
		return nil, err
	}
	return types.NewFrame(imaging.FlipH(frame.Image), frame.Seq, frame.Timestamp), nil
}

// MirrorOpener wraps every source returned by open with Mirror
func MirrorOpener(open OpenFunc) OpenFunc {
	return func(index int) (Source, error) {
		src, err := open(index)
		if err != nil {
			return nil, err
		}
		return Mirror(src), nil
	}
}
