package opencv

import (
	"fmt"

	"gocv.io/x/gocv"

	"github.com/dj-oyu/moodcam/internal/pipeline"
	"github.com/dj-oyu/moodcam/pkg/types"
)

const (
	keyEscape = 27
)

// Window is an OpenCV HighGUI preview. All methods must run on the main
// thread.
type Window struct {
	win *gocv.Window
	mat gocv.Mat
}

// NewWindow opens a named preview window
func NewWindow(title string) *Window {
	return &Window{win: gocv.NewWindow(title), mat: gocv.NewMat()}
}

// Show draws frame into the window
func (w *Window) Show(frame *types.Frame) error {
	mat, err := gocv.ImageToMatRGB(frame.Image)
	if err != nil {
		return fmt.Errorf("convert frame: %w", err)
	}
	w.mat.Close()
	w.mat = mat
	w.win.IMShow(w.mat)
	return nil
}

// Poll pumps the GUI event loop for 1ms. q or Esc quits, s saves a
// snapshot; closing the window also quits.
func (w *Window) Poll() pipeline.Command {
	key := w.win.WaitKey(1)
	if !w.win.IsOpen() {
		return pipeline.CommandQuit
	}
	switch key {
	case 'q', 'Q', keyEscape:
		return pipeline.CommandQuit
	case 's', 'S':
		return pipeline.CommandSnapshot
	}
	return pipeline.CommandNone
}

// Close destroys the window
func (w *Window) Close() error {
	w.mat.Close()
	return w.win.Close()
}
