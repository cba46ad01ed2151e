package snapshot

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

func testFrame() *types.Frame {
	img := image.NewNRGBA(image.Rect(0, 0, 16, 12))
	for y := 0; y < 12; y++ {
		for x := 0; x < 16; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 10, G: 200, B: 30, A: 255})
		}
	}
	return types.NewFrame(img, 1, time.Now())
}

func TestSaveWritesTimestampedPNG(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir, "png")
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	m.now = func() time.Time { return time.Unix(1700000000, 0) }

	path, err := m.Save(testFrame())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if want := filepath.Join(dir, "snapshot_1700000000.png"); path != want {
		t.Errorf("path = %s, want %s", path, want)
	}

	img, err := imaging.Open(path)
	if err != nil {
		t.Fatalf("open snapshot: %v", err)
	}
	r, g, b, _ := img.At(3, 3).RGBA()
	if r>>8 != 10 || g>>8 != 200 || b>>8 != 30 {
		t.Errorf("pixel = (%d,%d,%d), want (10,200,30)", r>>8, g>>8, b>>8)
	}
	if m.Count() != 1 || m.Last() != path {
		t.Errorf("Count=%d Last=%q", m.Count(), m.Last())
	}
}

func TestSaveJPEG(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir, "jpg")
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	path, err := m.Save(testFrame())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if filepath.Ext(path) != ".jpg" {
		t.Errorf("extension = %s", filepath.Ext(path))
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("stat: %v", err)
	}
}

func TestSaveReportsWriteError(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	// basePath below a regular file cannot be created.
	m, err := NewManager(filepath.Join(blocker, "snaps"), "png")
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	_, err = m.Save(testFrame())
	var werr *WriteError
	if !errors.As(err, &werr) {
		t.Fatalf("err = %v, want *WriteError", err)
	}
	if m.Count() != 0 || m.Last() != "" {
		t.Error("failed save must not be recorded")
	}
}

func TestSaveNilFrame(t *testing.T) {
	m, _ := NewManager(t.TempDir(), "")
	var werr *WriteError
	if _, err := m.Save(nil); !errors.As(err, &werr) {
		t.Errorf("err = %v, want *WriteError", err)
	}
}

func TestNewManagerRejectsUnknownFormat(t *testing.T) {
	if _, err := NewManager(t.TempDir(), "gif"); err == nil {
		t.Error("expected error for gif")
	}
	if _, err := NewManager(t.TempDir(), "webp"); err == nil {
		t.Error("expected error for webp")
	}
}
