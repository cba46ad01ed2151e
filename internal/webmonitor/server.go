// Package webmonitor serves the browser front end of the producer/consumer
// mode: an MJPEG preview, detection and status event streams, and
// start/stop/snapshot controls.
package webmonitor

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dj-oyu/moodcam/internal/logger"
	"github.com/dj-oyu/moodcam/internal/pipeline"
)

// Pipeline is the subset of *pipeline.Controller the server drives.
type Pipeline interface {
	FrameSource
	Start() error
	Stop() error
	Snapshot() (string, error)
	Status() pipeline.Status
}

// Server serves the web monitor endpoints.
type Server struct {
	cfg         Config
	pipeline    Pipeline
	monitor     *Monitor
	broadcaster *Broadcaster
}

// NewServer returns a configured monitor server and starts its broadcaster.
func NewServer(cfg Config, p Pipeline) *Server {
	cfg = cfg.withDefaults()
	monitor := NewMonitor(cfg.HistorySize)
	broadcaster := NewBroadcaster(p, monitor, cfg.MJPEGInterval, cfg.JPEGQuality)
	broadcaster.Start()

	return &Server{
		cfg:         cfg,
		pipeline:    p,
		monitor:     monitor,
		broadcaster: broadcaster,
	}
}

// Close stops the broadcaster and disconnects streaming clients.
func (s *Server) Close() {
	s.broadcaster.Stop()
}

// Handler exposes the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/stream", s.handleStream)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/status/stream", s.handleStatusStream)
	mux.HandleFunc("/api/detections/stream", s.handleDetectionsStream)
	mux.HandleFunc("/api/start", s.handleStart)
	mux.HandleFunc("/api/stop", s.handleStop)
	mux.HandleFunc("/api/snapshot", s.handleSnapshot)
	mux.HandleFunc("/health", s.handleHealth)

	return mux
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(indexHTML))
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	id, frameCh := s.broadcaster.SubscribeFrames()
	defer s.broadcaster.UnsubscribeFrames(id)
	streamMJPEGFromChannel(r.Context(), w, frameCh)
}

func (s *Server) statusPayload() map[string]any {
	stats, latest, history := s.monitor.Snapshot()
	stats.StreamClients = s.broadcaster.frames.Len()
	stats.EventClients = s.broadcaster.detections.Len()
	return map[string]any{
		"pipeline":          s.pipeline.Status(),
		"monitor":           stats,
		"latest_detection":  latest,
		"detection_history": history,
		"timestamp":         float64(time.Now().Unix()),
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.statusPayload())
}

func (s *Server) handleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ticker := time.NewTicker(s.cfg.StatusInterval)
	defer ticker.Stop()

	for {
		if err := writeSSE(w, s.statusPayload()); err != nil {
			return
		}
		flusher.Flush()

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Server) handleDetectionsStream(w http.ResponseWriter, r *http.Request) {
	id, eventCh := s.broadcaster.SubscribeDetections()
	defer s.broadcaster.UnsubscribeDetections(id)

	// Content negotiation based on Accept header
	accept := r.Header.Get("Accept")
	useProtobuf := strings.Contains(accept, "application/protobuf") ||
		strings.Contains(accept, "application/x-protobuf")

	streamEventsFromChannel(r.Context(), w, eventCh, useProtobuf)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	err := s.pipeline.Start()
	switch {
	case errors.Is(err, pipeline.ErrAlreadyRunning):
		writeJSONWithStatus(w, map[string]any{"error": err.Error()}, http.StatusConflict)
		return
	case err != nil:
		logger.Error("WebMonitor", "Start failed: %v", err)
		writeJSONWithStatus(w, map[string]any{"error": err.Error()}, http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, map[string]any{
		"status":     "running",
		"started_at": float64(time.Now().Unix()),
	})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	err := s.pipeline.Stop()
	switch {
	case errors.Is(err, pipeline.ErrNotRunning):
		writeJSONWithStatus(w, map[string]any{"error": err.Error()}, http.StatusConflict)
		return
	case err != nil:
		// The session is over either way; report the release error.
		logger.Warn("WebMonitor", "Stop: %v", err)
	}
	s.monitor.Reset()

	payload := map[string]any{
		"status":     "stopped",
		"stopped_at": float64(time.Now().Unix()),
	}
	if err != nil {
		payload["warning"] = err.Error()
	}
	writeJSON(w, payload)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path, err := s.pipeline.Snapshot()
	switch {
	case errors.Is(err, pipeline.ErrNoFrame):
		writeJSONWithStatus(w, map[string]any{"error": err.Error()}, http.StatusConflict)
		return
	case err != nil:
		logger.Error("WebMonitor", "Snapshot failed: %v", err)
		writeJSONWithStatus(w, map[string]any{"error": err.Error()}, http.StatusInternalServerError)
		return
	}

	logger.Info("WebMonitor", "Snapshot saved to %s", path)
	writeJSON(w, map[string]any{"file": path})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status":   "ok",
		"pipeline": s.pipeline.Status().State,
	})
}

func writeJSON(w http.ResponseWriter, payload any) {
	writeJSONWithStatus(w, payload, http.StatusOK)
}

func writeJSONWithStatus(w http.ResponseWriter, payload any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		_, _ = fmt.Fprintf(w, `{"error":"%s"}`, err.Error())
	}
}
