package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/dj-oyu/moodcam/internal/logger"
)

// Consume is the foreground half of the producer/consumer mode. Every
// interval it shows the newest frame from c (if any arrived) and handles
// display commands. It runs on the calling goroutine, which for GUI
// toolkits must be the main thread. Returns when ctx ends, the user quits or
// the producer is no longer running; it does not stop c.
func Consume(ctx context.Context, c *Controller, d Display, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		if af, ok := c.Take(); ok {
			if err := d.Show(af.Frame); err != nil {
				return err
			}
			c.metrics.FramesShown.Add(1)
		} else if !c.running.Load() {
			return nil
		}

		switch d.Poll() {
		case CommandQuit:
			return nil
		case CommandSnapshot:
			path, err := c.Snapshot()
			switch {
			case errors.Is(err, ErrNoFrame):
				logger.Warn("Consumer", "Snapshot: no frame yet")
			case err != nil:
				logger.Error("Consumer", "Snapshot: %v", err)
			default:
				logger.Info("Consumer", "Snapshot saved to %s", path)
			}
		}
	}
}
