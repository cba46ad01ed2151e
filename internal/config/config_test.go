package config

import (
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "moodcam.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate(): %v", err)
	}
	if cfg.Detector.CascadePath != "haarcascade_frontalface_default.xml" {
		t.Errorf("cascade path = %q", cfg.Detector.CascadePath)
	}
	if cfg.Detector.ScaleFactor != 1.2 || cfg.Detector.MinNeighbors != 5 || cfg.Detector.MinSize != 80 {
		t.Errorf("detector params = %+v", cfg.Detector.Params)
	}
	if cfg.Model.Threshold != 0.4 {
		t.Errorf("threshold = %v", cfg.Model.Threshold)
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
model:
  path: /models/fer.onnx
  threshold: 0.55
camera:
  index: 2
  frame_interval: 30ms
detector:
  backend: PIGO
  min_neighbors: 3
snapshot:
  format: JPG
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Model.Path != "/models/fer.onnx" || cfg.Model.Threshold != 0.55 {
		t.Errorf("model = %+v", cfg.Model)
	}
	if cfg.Camera.Index != 2 || cfg.Camera.FrameInterval != 30*time.Millisecond {
		t.Errorf("camera = %+v", cfg.Camera)
	}
	if !cfg.Camera.Mirror || cfg.Camera.Width != 640 {
		t.Errorf("defaults lost: %+v", cfg.Camera)
	}
	if cfg.Detector.Backend != BackendPigo || cfg.Detector.CascadePath != "cascade/facefinder" {
		t.Errorf("detector = %+v", cfg.Detector)
	}
	if cfg.Detector.MinNeighbors != 3 || cfg.Detector.ScaleFactor != 1.2 {
		t.Errorf("detector params = %+v", cfg.Detector.Params)
	}
	if cfg.Snapshot.Format != "jpg" {
		t.Errorf("snapshot format = %q", cfg.Snapshot.Format)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := map[string]func(*Config){
		"threshold":   func(c *Config) { c.Model.Threshold = 1.5 },
		"backend":     func(c *Config) { c.Detector.Backend = "yolo" },
		"scale":       func(c *Config) { c.Detector.ScaleFactor = 1.0 },
		"downscale":   func(c *Config) { c.Detector.Downscale = 2 },
		"format":      func(c *Config) { c.Snapshot.Format = "gif" },
		"quality":     func(c *Config) { c.Monitor.JPEGQuality = 0 },
		"log level":   func(c *Config) { c.LogLevel = "loud" },
		"model":       func(c *Config) { c.Model.Path = "" },
		"camera":      func(c *Config) { c.Camera.Index = -1 },
		"interval":    func(c *Config) { c.Camera.FrameInterval = -time.Second },
		"mjpeg":       func(c *Config) { c.Monitor.MJPEGInterval = 0 },
		"frame width": func(c *Config) { c.Camera.Width = -5 },
	}
	for name, mutate := range tests {
		cfg := Default()
		mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestFromFlagsWithoutFile(t *testing.T) {
	cfg, err := FromFlags(newFlagSet(), []string{"-threshold", "0.25", "-camera", "1", "-mirror=false", "-frame-interval", "50ms"})
	if err != nil {
		t.Fatalf("FromFlags: %v", err)
	}
	if cfg.Model.Threshold != 0.25 || cfg.Camera.Index != 1 || cfg.Camera.Mirror {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Camera.FrameInterval != 50*time.Millisecond {
		t.Errorf("frame interval = %v", cfg.Camera.FrameInterval)
	}
}

func TestFromFlagsOverridesFile(t *testing.T) {
	path := writeConfig(t, `
model:
  path: from-file.onnx
  threshold: 0.7
camera:
  index: 3
`)
	fs := newFlagSet()
	headless := fs.Bool("headless", false, "extra flag owned by the caller")

	cfg, err := FromFlags(fs, []string{"-config", path, "-threshold", "0.2", "-headless"})
	if err != nil {
		t.Fatalf("FromFlags: %v", err)
	}
	if cfg.Model.Path != "from-file.onnx" {
		t.Errorf("model path = %q, want value from file", cfg.Model.Path)
	}
	if cfg.Model.Threshold != 0.2 {
		t.Errorf("threshold = %v, want flag value 0.2", cfg.Model.Threshold)
	}
	if cfg.Camera.Index != 3 {
		t.Errorf("camera index = %d, want value from file", cfg.Camera.Index)
	}
	if !*headless {
		t.Error("caller-owned flag not parsed")
	}
}

func TestFromFlagsBadFile(t *testing.T) {
	path := writeConfig(t, "model: [unclosed")
	if _, err := FromFlags(newFlagSet(), []string{"-config", path}); err == nil {
		t.Error("expected parse error")
	}
}
