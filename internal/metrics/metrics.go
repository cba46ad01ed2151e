package metrics

import (
	"math"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all pipeline counters. The zero value is not usable; call New.
type Metrics struct {
	// Capture
	FramesRead atomic.Uint64
	ReadErrors atomic.Uint64

	// Annotation
	FramesAnnotated      atomic.Uint64
	RegionsLocated       atomic.Uint64
	RegionsClassified    atomic.Uint64
	ClassificationErrors atomic.Uint64
	FrameErrors          atomic.Uint64 // iterations aborted by a panic

	// Hand-off between producer and consumer
	SlotPublishes  atomic.Uint64
	SlotOverwrites atomic.Uint64 // frames replaced before the consumer saw them
	FramesShown    atomic.Uint64

	// Snapshots
	SnapshotsSaved atomic.Uint64
	SnapshotErrors atomic.Uint64

	// Gauges
	fpsBits          atomic.Uint64 // math.Float64bits of the last reported rate
	ProcessLatencyMs atomic.Uint64
	PipelineRunning  atomic.Uint64 // 0 = idle/stopped, 1 = running

	registry *prometheus.Registry
}

// New creates a new Metrics instance with Prometheus collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}
	m.registerPrometheusMetrics()
	return m
}

type series struct {
	name string
	help string
	load func() float64
}

func counter(v *atomic.Uint64) func() float64 {
	return func() float64 { return float64(v.Load()) }
}

func (m *Metrics) registerPrometheusMetrics() {
	counters := []series{
		{"moodcam_frames_read_total", "Total frames read from the frame source", counter(&m.FramesRead)},
		{"moodcam_read_errors_total", "Total frame source read errors", counter(&m.ReadErrors)},
		{"moodcam_frames_annotated_total", "Total frames run through locate/classify/render", counter(&m.FramesAnnotated)},
		{"moodcam_regions_located_total", "Total face regions located", counter(&m.RegionsLocated)},
		{"moodcam_regions_classified_total", "Total face regions classified", counter(&m.RegionsClassified)},
		{"moodcam_classification_errors_total", "Total regions skipped because classification failed", counter(&m.ClassificationErrors)},
		{"moodcam_frame_errors_total", "Total frame iterations aborted by an unexpected failure", counter(&m.FrameErrors)},
		{"moodcam_slot_publishes_total", "Total frames published to the latest-frame slot", counter(&m.SlotPublishes)},
		{"moodcam_slot_overwrites_total", "Total frames overwritten before being displayed", counter(&m.SlotOverwrites)},
		{"moodcam_frames_shown_total", "Total frames handed to a display", counter(&m.FramesShown)},
		{"moodcam_snapshots_saved_total", "Total snapshots written", counter(&m.SnapshotsSaved)},
		{"moodcam_snapshot_errors_total", "Total snapshot write failures", counter(&m.SnapshotErrors)},
	}
	gauges := []series{
		{"moodcam_fps", "Most recently reported pipeline throughput", m.FPS},
		{"moodcam_process_latency_ms", "Latency of the last frame iteration in milliseconds", counter(&m.ProcessLatencyMs)},
		{"moodcam_pipeline_running", "Pipeline running (0=idle or stopped, 1=running)", counter(&m.PipelineRunning)},
	}

	for _, c := range counters {
		m.registry.MustRegister(prometheus.NewCounterFunc(
			prometheus.CounterOpts{Name: c.name, Help: c.help},
			c.load,
		))
	}
	for _, g := range gauges {
		m.registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{Name: g.name, Help: g.help},
			g.load,
		))
	}
}

// SetFPS records the latest throughput estimate
func (m *Metrics) SetFPS(fps float64) {
	m.fpsBits.Store(math.Float64bits(fps))
}

// FPS returns the latest throughput estimate
func (m *Metrics) FPS() float64 {
	return math.Float64frombits(m.fpsBits.Load())
}

// UpdateProcessLatency stores the duration of the last frame iteration
func (m *Metrics) UpdateProcessLatency(duration time.Duration) {
	m.ProcessLatencyMs.Store(uint64(duration.Milliseconds()))
}

// SetRunning flips the running gauge
func (m *Metrics) SetRunning(running bool) {
	if running {
		m.PipelineRunning.Store(1)
		return
	}
	m.PipelineRunning.Store(0)
}

// Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartServer serves /metrics on addr. Blocks until the listener fails.
func (m *Metrics) StartServer(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return http.ListenAndServe(addr, mux)
}
