package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dj-oyu/moodcam/internal/app"
	"github.com/dj-oyu/moodcam/internal/config"
	"github.com/dj-oyu/moodcam/internal/logger"
	"github.com/dj-oyu/moodcam/internal/pipeline"
	"github.com/dj-oyu/moodcam/internal/webmonitor"
)

func main() {
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	autostart := fs.Bool("autostart", false, "Start capturing immediately")
	cfg, err := config.FromFlags(fs, os.Args[1:])
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Invalid log level: %v", err)
	}
	logger.Init(level, os.Stderr, cfg.LogColor)
	logger.Info("Main", "Log level: %s", level)

	if err := run(cfg, *autostart); err != nil {
		logger.Error("Main", "%v", err)
		os.Exit(1)
	}
}

// run owns every resource it creates and releases them on each return path.
func run(cfg *config.Config, autostart bool) error {
	a, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("startup failed: %w", err)
	}
	defer a.Close()

	controller, err := pipeline.NewController(pipeline.ControllerConfig{
		Open:          a.Open,
		DeviceIndex:   cfg.Camera.Index,
		Processor:     a.Processor,
		Snapshots:     a.Snapshots,
		FrameInterval: cfg.Camera.FrameInterval,
	})
	if err != nil {
		return fmt.Errorf("startup failed: %w", err)
	}
	defer controller.Close()

	if autostart {
		if err := controller.Start(); err != nil {
			return fmt.Errorf("start capture: %w", err)
		}
	}

	if cfg.MetricsAddr != "" {
		go func() {
			logger.Info("Main", "Metrics listening on %s", cfg.MetricsAddr)
			if err := a.Metrics.StartServer(cfg.MetricsAddr); err != nil {
				logger.Error("Main", "Metrics server: %v", err)
			}
		}()
	}

	server := webmonitor.NewServer(webmonitor.Config{
		Addr:           cfg.Monitor.Addr,
		MJPEGInterval:  cfg.Monitor.MJPEGInterval,
		StatusInterval: cfg.Monitor.StatusInterval,
		JPEGQuality:    cfg.Monitor.JPEGQuality,
	}, controller)
	defer server.Close()

	httpServer := &http.Server{
		Addr:    cfg.Monitor.Addr,
		Handler: server.Handler(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		logger.Info("Main", "Shutting down")
		// Streaming handlers only return once the broadcaster closes their channels
		server.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Main", "HTTP shutdown: %v", err)
		}
	}()

	logger.Info("Main", "Web monitor listening on %s", cfg.Monitor.Addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
