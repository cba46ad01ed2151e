package config

import (
	"fmt"
	"strings"

	"github.com/dj-oyu/moodcam/internal/logger"
)

// Validate checks the configuration and fills derived defaults
func (c *Config) Validate() error {
	if c.Model.Path == "" {
		return fmt.Errorf("model.path is required")
	}
	if c.Model.Threshold < 0 || c.Model.Threshold > 1 {
		return fmt.Errorf("model.threshold must be in [0, 1], got %v", c.Model.Threshold)
	}

	if c.Camera.Index < 0 {
		return fmt.Errorf("camera.index must be >= 0")
	}
	if c.Camera.Width < 0 || c.Camera.Height < 0 {
		return fmt.Errorf("camera size must be >= 0")
	}
	if c.Camera.FrameInterval < 0 {
		return fmt.Errorf("camera.frame_interval must be >= 0")
	}

	c.Detector.Backend = strings.ToLower(c.Detector.Backend)
	def, ok := defaultCascades[c.Detector.Backend]
	if !ok {
		return fmt.Errorf("detector.backend must be %q or %q, got %q", BackendHaar, BackendPigo, c.Detector.Backend)
	}
	if c.Detector.CascadePath == "" {
		c.Detector.CascadePath = def
	}
	if c.Detector.ScaleFactor <= 1 {
		return fmt.Errorf("detector.scale_factor must be > 1")
	}
	if c.Detector.MinNeighbors < 0 || c.Detector.MinSize < 0 {
		return fmt.Errorf("detector.min_neighbors and detector.min_size must be >= 0")
	}
	if c.Detector.Downscale == 0 {
		c.Detector.Downscale = 1
	}
	if c.Detector.Downscale < 0 || c.Detector.Downscale > 1 {
		return fmt.Errorf("detector.downscale must be in (0, 1]")
	}
	if c.Detector.ShiftFactor <= 0 {
		c.Detector.ShiftFactor = 0.1
	}
	if c.Detector.IoU <= 0 {
		c.Detector.IoU = 0.2
	}

	if c.Throughput.Batch <= 0 {
		c.Throughput.Batch = 10
	}

	c.Snapshot.Format = strings.ToLower(strings.TrimPrefix(c.Snapshot.Format, "."))
	switch c.Snapshot.Format {
	case "":
		c.Snapshot.Format = "png"
	case "png", "jpg", "jpeg":
	default:
		return fmt.Errorf("snapshot.format must be png or jpg, got %q", c.Snapshot.Format)
	}
	if c.Snapshot.Dir == "" {
		c.Snapshot.Dir = "."
	}

	if c.Monitor.Addr == "" {
		return fmt.Errorf("monitor.addr is required")
	}
	if c.Monitor.JPEGQuality < 1 || c.Monitor.JPEGQuality > 100 {
		return fmt.Errorf("monitor.jpeg_quality must be in [1, 100]")
	}
	if c.Monitor.MJPEGInterval <= 0 {
		return fmt.Errorf("monitor.mjpeg_interval must be > 0")
	}
	if c.Monitor.StatusInterval <= 0 {
		return fmt.Errorf("monitor.status_interval must be > 0")
	}

	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}
