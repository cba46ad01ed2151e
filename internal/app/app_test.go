package app

import (
	"context"
	"image"
	"image/color"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/dj-oyu/moodcam/internal/config"
	"github.com/dj-oyu/moodcam/internal/detect"
	"github.com/dj-oyu/moodcam/internal/pipeline"
	"github.com/dj-oyu/moodcam/pkg/types"
)

type constClassifier struct{}

func (constClassifier) Classify(image.Image) (types.Prediction, error) {
	return types.Prediction{types.Surprise: 0.8, types.Fear: 0.2}, nil
}

// writeReplay writes n frames whose left half is red and right half blue
func writeReplay(t *testing.T, n int) string {
	t.Helper()
	dir := t.TempDir()
	for i := 0; i < n; i++ {
		img := image.NewNRGBA(image.Rect(0, 0, 64, 48))
		for y := 0; y < 48; y++ {
			for x := 0; x < 64; x++ {
				c := color.NRGBA{R: 255, A: 255}
				if x >= 32 {
					c = color.NRGBA{B: 255, A: 255}
				}
				img.SetNRGBA(x, y, c)
			}
		}
		name := filepath.Join(dir, fmt.Sprintf("frame_%03d.png", i))
		if err := imaging.Save(img, name); err != nil {
			t.Fatalf("save %s: %v", name, err)
		}
	}
	return dir
}

func testConfig(t *testing.T, replay string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Camera.ReplayDir = replay
	cfg.Overlay.FontSize = 0
	cfg.Overlay.ShowFPS = false
	cfg.Snapshot.Dir = t.TempDir()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	return cfg
}

func TestNewOpenerMirrorsReplay(t *testing.T) {
	cfg := testConfig(t, writeReplay(t, 1))

	src, err := NewOpener(cfg.Camera)(0)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer src.Close()

	frame, err := src.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got := frame.Image.NRGBAAt(0, 0); got.B != 255 || got.R != 0 {
		t.Errorf("left pixel after mirror = %v, want blue", got)
	}
}

func TestAssembleRunsReplay(t *testing.T) {
	cfg := testConfig(t, writeReplay(t, 3))
	cfg.Camera.Mirror = false

	loc := detect.LocatorFunc(func(*types.Frame) []types.Region {
		return []types.Region{{X: 4, Y: 4, W: 24, H: 24}}
	})
	a, err := Assemble(cfg, loc, constClassifier{})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	defer a.Close()

	r, err := pipeline.NewRunner(pipeline.RunnerConfig{
		Open:      a.Open,
		Processor: a.Processor,
		Snapshots: a.Snapshots,
	})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if n := a.Metrics.FramesAnnotated.Load(); n != 3 {
		t.Errorf("FramesAnnotated = %d, want 3", n)
	}
	if n := a.Metrics.RegionsClassified.Load(); n != 3 {
		t.Errorf("RegionsClassified = %d, want 3", n)
	}
}

func TestAssembleRejectsBadSnapshotFormat(t *testing.T) {
	cfg := testConfig(t, writeReplay(t, 1))
	cfg.Snapshot.Format = "gif"

	if _, err := Assemble(cfg, detect.LocatorFunc(func(*types.Frame) []types.Region { return nil }), constClassifier{}); err == nil {
		t.Fatal("expected an error for gif snapshots")
	}
}
