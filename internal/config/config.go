// Package config holds the runtime configuration shared by both binaries.
package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dj-oyu/moodcam/internal/detect"
)

// Config is the complete detector configuration
type Config struct {
	Model      ModelConfig      `yaml:"model"`
	Camera     CameraConfig     `yaml:"camera"`
	Detector   DetectorConfig   `yaml:"detector"`
	Overlay    OverlayConfig    `yaml:"overlay"`
	Throughput ThroughputConfig `yaml:"throughput"`
	Snapshot   SnapshotConfig   `yaml:"snapshot"`
	Monitor    MonitorConfig    `yaml:"monitor"`

	MetricsAddr string `yaml:"metrics_addr"` // empty disables the Prometheus endpoint
	LogLevel    string `yaml:"log_level"`
	LogColor    bool   `yaml:"log_color"`
}

// ModelConfig locates the emotion model
type ModelConfig struct {
	Path          string  `yaml:"path"`
	MetadataPath  string  `yaml:"metadata_path"`  // optional; defaults describe a 48x48 RGB model
	SharedLibrary string  `yaml:"shared_library"` // libonnxruntime location
	Threshold     float64 `yaml:"threshold"`      // above: reliable color, at or below: uncertain
}

// CameraConfig describes the frame source
type CameraConfig struct {
	Index         int           `yaml:"index"`
	Mirror        bool          `yaml:"mirror"`
	Width         int           `yaml:"width"`  // 0 keeps the device size
	Height        int           `yaml:"height"` // 0 keeps the device size
	FrameInterval time.Duration `yaml:"frame_interval"`
	ReplayDir     string        `yaml:"replay_dir"` // replay images instead of opening a camera
	Loop          bool          `yaml:"loop"`
}

// DetectorConfig selects the face locator
type DetectorConfig struct {
	Backend       string  `yaml:"backend"` // haar | pigo
	CascadePath   string  `yaml:"cascade_path"`
	Downscale     float64 `yaml:"downscale"` // (0,1]; locate on a smaller copy
	detect.Params `yaml:",inline"`
}

// OverlayConfig controls what is drawn
type OverlayConfig struct {
	FontSize   float64 `yaml:"font_size"`
	ShowFPS    bool    `yaml:"show_fps"`
	ShowScores bool    `yaml:"show_scores"`
}

// ThroughputConfig tunes the FPS estimate
type ThroughputConfig struct {
	Batch    int           `yaml:"batch"`
	Interval time.Duration `yaml:"interval"`
}

// SnapshotConfig says where snapshots go
type SnapshotConfig struct {
	Dir    string `yaml:"dir"`
	Format string `yaml:"format"`
}

// MonitorConfig configures the web monitor
type MonitorConfig struct {
	Addr           string        `yaml:"addr"`
	MJPEGInterval  time.Duration `yaml:"mjpeg_interval"`
	StatusInterval time.Duration `yaml:"status_interval"`
	JPEGQuality    int           `yaml:"jpeg_quality"`
}

const (
	BackendHaar = "haar"
	BackendPigo = "pigo"
)

var defaultCascades = map[string]string{
	BackendHaar: "haarcascade_frontalface_default.xml",
	BackendPigo: "cascade/facefinder",
}

// Default returns the configuration used when no file or flag overrides it
func Default() *Config {
	return &Config{
		Model: ModelConfig{
			Path:      "emotion_model.onnx",
			Threshold: 0.4,
		},
		Camera: CameraConfig{
			Index:  0,
			Mirror: true,
			Width:  640,
			Height: 480,
		},
		Detector: DetectorConfig{
			Backend:   BackendHaar,
			Downscale: 1.0,
			Params:    detect.DefaultParams(),
		},
		Overlay: OverlayConfig{
			FontSize: 18,
			ShowFPS:  true,
		},
		Throughput: ThroughputConfig{
			Batch: 10,
		},
		Snapshot: SnapshotConfig{
			Dir:    ".",
			Format: "png",
		},
		Monitor: MonitorConfig{
			Addr:           ":8080",
			MJPEGInterval:  33 * time.Millisecond,
			StatusInterval: 2 * time.Second,
			JPEGQuality:    80,
		},
		LogLevel: "info",
		LogColor: true,
	}
}

// Load reads a YAML file over the defaults and validates the result
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// BindFlags registers a command-line flag for every tunable field
func (c *Config) BindFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Model.Path, "model", c.Model.Path, "ONNX emotion model path")
	fs.StringVar(&c.Model.MetadataPath, "metadata", c.Model.MetadataPath, "Model metadata JSON (input_shape, classes, ...)")
	fs.StringVar(&c.Model.SharedLibrary, "onnx-lib", c.Model.SharedLibrary, "Path to the ONNX Runtime shared library")
	fs.Float64Var(&c.Model.Threshold, "threshold", c.Model.Threshold, "Confidence above which annotations are drawn as reliable")

	fs.IntVar(&c.Camera.Index, "camera", c.Camera.Index, "Camera device index")
	fs.BoolVar(&c.Camera.Mirror, "mirror", c.Camera.Mirror, "Flip frames horizontally")
	fs.IntVar(&c.Camera.Width, "width", c.Camera.Width, "Frame width (0 = device default)")
	fs.IntVar(&c.Camera.Height, "height", c.Camera.Height, "Frame height (0 = device default)")
	fs.DurationVar(&c.Camera.FrameInterval, "frame-interval", c.Camera.FrameInterval, "Minimum time between processed frames")
	fs.StringVar(&c.Camera.ReplayDir, "replay", c.Camera.ReplayDir, "Replay images from this directory instead of a camera")
	fs.BoolVar(&c.Camera.Loop, "loop", c.Camera.Loop, "Loop the replay directory")

	fs.StringVar(&c.Detector.Backend, "detector", c.Detector.Backend, "Face detector backend (haar, pigo)")
	fs.StringVar(&c.Detector.CascadePath, "cascade", c.Detector.CascadePath, "Cascade file for the detector backend")
	fs.Float64Var(&c.Detector.ScaleFactor, "scale-factor", c.Detector.ScaleFactor, "Cascade scale step")
	fs.IntVar(&c.Detector.MinNeighbors, "min-neighbors", c.Detector.MinNeighbors, "Detections required to accept a face")
	fs.IntVar(&c.Detector.MinSize, "min-size", c.Detector.MinSize, "Smallest face edge in pixels")
	fs.Float64Var(&c.Detector.Downscale, "detect-scale", c.Detector.Downscale, "Run detection on a copy scaled by this factor")

	fs.Float64Var(&c.Overlay.FontSize, "font-size", c.Overlay.FontSize, "Label font size (0 = bitmap font)")
	fs.BoolVar(&c.Overlay.ShowFPS, "show-fps", c.Overlay.ShowFPS, "Draw the FPS counter")
	fs.BoolVar(&c.Overlay.ShowScores, "show-scores", c.Overlay.ShowScores, "Draw every label score for the largest face")
	fs.IntVar(&c.Throughput.Batch, "fps-batch", c.Throughput.Batch, "Frames per FPS measurement")

	fs.StringVar(&c.Snapshot.Dir, "snapshot-dir", c.Snapshot.Dir, "Directory for snapshots")
	fs.StringVar(&c.Snapshot.Format, "snapshot-format", c.Snapshot.Format, "Snapshot format (png, jpg)")

	fs.StringVar(&c.Monitor.Addr, "http", c.Monitor.Addr, "HTTP server address")
	fs.DurationVar(&c.Monitor.MJPEGInterval, "mjpeg-interval", c.Monitor.MJPEGInterval, "Display refresh interval")
	fs.DurationVar(&c.Monitor.StatusInterval, "status-interval", c.Monitor.StatusInterval, "Status event interval")
	fs.IntVar(&c.Monitor.JPEGQuality, "jpeg-quality", c.Monitor.JPEGQuality, "MJPEG quality (1-100)")

	fs.StringVar(&c.MetricsAddr, "metrics", c.MetricsAddr, "Prometheus metrics address (empty to disable)")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level (debug, info, warn, error, silent)")
	fs.BoolVar(&c.LogColor, "log-color", c.LogColor, "Enable colored log output")
}

// FromFlags parses args into a Config. With -config, the file is loaded and
// flags given explicitly on the command line override its values.
func FromFlags(fs *flag.FlagSet, args []string) (*Config, error) {
	cfg := Default()
	var path string
	fs.StringVar(&path, "config", "", "YAML config file")
	cfg.BindFlags(fs)

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if path != "" {
		loaded, err := Load(path)
		if err != nil {
			return nil, err
		}

		over := flag.NewFlagSet("override", flag.ContinueOnError)
		over.SetOutput(io.Discard)
		loaded.BindFlags(over)

		var setErr error
		fs.Visit(func(f *flag.Flag) {
			if over.Lookup(f.Name) == nil || setErr != nil {
				return
			}
			if err := over.Set(f.Name, f.Value.String()); err != nil {
				setErr = fmt.Errorf("flag -%s: %w", f.Name, err)
			}
		})
		if setErr != nil {
			return nil, setErr
		}
		cfg = loaded
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
