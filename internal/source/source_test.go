package source

import (
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/disintegration/imaging"

	"github.com/dj-oyu/moodcam/pkg/types"
)

func writeImage(t *testing.T, path string, w, h int, c color.NRGBA) {
	t.Helper()
	img := imaging.New(w, h, c)
	if err := imaging.Save(img, path); err != nil {
		t.Fatalf("save %s: %v", path, err)
	}
}

func TestDirSourceReplaysInOrder(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, filepath.Join(dir, "002.png"), 32, 24, color.NRGBA{G: 255, A: 255})
	writeImage(t, filepath.Join(dir, "001.png"), 32, 24, color.NRGBA{R: 255, A: 255})
	writeImage(t, filepath.Join(dir, "003.jpg"), 64, 48, color.NRGBA{B: 255, A: 255})
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip"), 0o644); err != nil {
		t.Fatal(err)
	}

	src, err := NewDirSource(dir, false)
	if err != nil {
		t.Fatalf("NewDirSource: %v", err)
	}
	defer src.Close()

	first, err := src.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got := first.Image.NRGBAAt(0, 0); got.R != 255 || got.G != 0 {
		t.Errorf("first frame color = %v, want red", got)
	}
	if first.Seq != 1 {
		t.Errorf("Seq = %d, want 1", first.Seq)
	}

	if _, err := src.Read(); err != nil {
		t.Fatalf("Read: %v", err)
	}
	third, err := src.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if third.Width() != 32 || third.Height() != 24 {
		t.Errorf("third frame %dx%d, want session size 32x24", third.Width(), third.Height())
	}

	if _, err := src.Read(); !errors.Is(err, ErrEndOfStream) {
		t.Errorf("err = %v, want ErrEndOfStream", err)
	}
}

func TestDirSourceLoops(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, filepath.Join(dir, "a.png"), 8, 8, color.NRGBA{A: 255})

	src, err := NewDirSource(dir, true)
	if err != nil {
		t.Fatalf("NewDirSource: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := src.Read(); err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
	}
	src.Close()
	if _, err := src.Read(); !errors.Is(err, ErrEndOfStream) {
		t.Errorf("read after Close: err = %v, want ErrEndOfStream", err)
	}
	if err := src.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestDirSourceEmptyIsUnavailable(t *testing.T) {
	_, err := NewDirSource(t.TempDir(), false)
	if !errors.Is(err, ErrDeviceUnavailable) {
		t.Errorf("err = %v, want ErrDeviceUnavailable", err)
	}
	_, err = OpenDir(filepath.Join(t.TempDir(), "missing"), false)(0)
	if !errors.Is(err, ErrDeviceUnavailable) {
		t.Errorf("err = %v, want ErrDeviceUnavailable", err)
	}
}

type stubSource struct {
	frame *types.Frame
}

func (s *stubSource) Read() (*types.Frame, error) { return s.frame, nil }
func (s *stubSource) Close() error                { return nil }

func TestMirrorFlipsHorizontally(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 255})
	stub := &stubSource{frame: types.NewFrame(img, 7, time.Unix(5, 0))}

	open := MirrorOpener(func(int) (Source, error) { return stub, nil })
	src, err := open(0)
	if err != nil {
		t.Fatal(err)
	}
	f, err := src.Read()
	if err != nil {
		t.Fatal(err)
	}
	if f.Image.NRGBAAt(3, 0).R != 255 || f.Image.NRGBAAt(0, 0).R != 0 {
		t.Error("frame was not mirrored")
	}
	if f.Seq != 7 || !f.Timestamp.Equal(time.Unix(5, 0)) {
		t.Errorf("metadata lost: seq=%d ts=%v", f.Seq, f.Timestamp)
	}
}
