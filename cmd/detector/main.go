package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/dj-oyu/moodcam/internal/app"
	"github.com/dj-oyu/moodcam/internal/config"
	"github.com/dj-oyu/moodcam/internal/logger"
	"github.com/dj-oyu/moodcam/internal/opencv"
	"github.com/dj-oyu/moodcam/internal/pipeline"
)

func init() {
	// HighGUI windows must be driven from the thread that created them
	runtime.LockOSThread()
}

func main() {
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	headless := fs.Bool("headless", false, "Run without a preview window")
	threaded := fs.Bool("threaded", false, "Capture on a background producer and display on the main thread")
	cfg, err := config.FromFlags(fs, os.Args[1:])
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Invalid log level: %v", err)
	}
	logger.Init(level, os.Stderr, cfg.LogColor)

	a, err := app.New(cfg)
	if err != nil {
		log.Fatalf("Startup failed: %v", err)
	}
	defer a.Close()

	if cfg.MetricsAddr != "" {
		go func() {
			logger.Info("Main", "Metrics listening on %s", cfg.MetricsAddr)
			if err := a.Metrics.StartServer(cfg.MetricsAddr); err != nil {
				logger.Error("Main", "Metrics server: %v", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var display pipeline.Display = pipeline.NullDisplay{}
	if !*headless {
		display = opencv.NewWindow("Emotion Detector")
	}

	logger.Info("Main", "Press 'q' to quit, 's' to save a snapshot")
	if *threaded {
		err = runThreaded(ctx, a, display)
	} else {
		err = runSync(ctx, a, display)
	}
	if err != nil {
		logger.Error("Main", "%v", err)
		a.Close()
		os.Exit(1)
	}
	logger.Info("Main", "Bye")
}

func runSync(ctx context.Context, a *app.App, display pipeline.Display) error {
	r, err := pipeline.NewRunner(pipeline.RunnerConfig{
		Open:          a.Open,
		DeviceIndex:   a.Config.Camera.Index,
		Processor:     a.Processor,
		Display:       display,
		Snapshots:     a.Snapshots,
		FrameInterval: a.Config.Camera.FrameInterval,
	})
	if err != nil {
		display.Close()
		return err
	}
	return r.Run(ctx)
}

func runThreaded(ctx context.Context, a *app.App, display pipeline.Display) error {
	defer display.Close()

	c, err := pipeline.NewController(pipeline.ControllerConfig{
		Open:          a.Open,
		DeviceIndex:   a.Config.Camera.Index,
		Processor:     a.Processor,
		Snapshots:     a.Snapshots,
		FrameInterval: a.Config.Camera.FrameInterval,
	})
	if err != nil {
		return err
	}
	if err := c.Start(); err != nil {
		return err
	}
	defer c.Close()

	return pipeline.Consume(ctx, c, display, a.Config.Monitor.MJPEGInterval)
}
