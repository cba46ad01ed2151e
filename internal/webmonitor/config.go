package webmonitor

import (
	"time"
)

// Config defines the runtime configuration for the web monitor server.
type Config struct {
	Addr           string
	MJPEGInterval  time.Duration // how often the broadcaster polls for a new frame
	StatusInterval time.Duration
	JPEGQuality    int
	HistorySize    int // non-empty detection events kept for /api/status
}

// DefaultConfig returns the settings used when nothing overrides them.
func DefaultConfig() Config {
	return Config{
		Addr:           ":8080",
		MJPEGInterval:  33 * time.Millisecond,
		StatusInterval: 2 * time.Second,
		JPEGQuality:    80,
		HistorySize:    8,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MJPEGInterval <= 0 {
		c.MJPEGInterval = def.MJPEGInterval
	}
	if c.StatusInterval <= 0 {
		c.StatusInterval = def.StatusInterval
	}
	if c.JPEGQuality <= 0 || c.JPEGQuality > 100 {
		c.JPEGQuality = def.JPEGQuality
	}
	if c.HistorySize <= 0 {
		c.HistorySize = def.HistorySize
	}
	return c
}
