package webmonitor

import (
	"sync"
	"time"
)

// Monitor keeps the latest detection event and a short history of events
// that contained at least one face.
type Monitor struct {
	startTime   time.Time
	historySize int

	mu               sync.Mutex
	framesSeen       uint64
	latestDetection  *DetectionEvent
	detectionHistory []DetectionEvent
}

// NewMonitor creates a Monitor keeping up to historySize non-empty events.
func NewMonitor(historySize int) *Monitor {
	return &Monitor{
		startTime:   time.Now(),
		historySize: historySize,
	}
}

// Record stores ev as the latest event.
func (m *Monitor) Record(ev DetectionEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.framesSeen++
	m.latestDetection = &ev
	if len(ev.Detections) > 0 {
		m.detectionHistory = append([]DetectionEvent{ev}, m.detectionHistory...)
		if len(m.detectionHistory) > m.historySize {
			m.detectionHistory = m.detectionHistory[:m.historySize]
		}
	}
}

// Snapshot returns the current stats, the latest event and a copy of the
// history, newest first.
func (m *Monitor) Snapshot() (MonitorStats, *DetectionEvent, []DetectionEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := MonitorStats{
		FramesSeen:    m.framesSeen,
		UptimeSeconds: time.Since(m.startTime).Seconds(),
	}
	var latest *DetectionEvent
	if m.latestDetection != nil {
		ev := *m.latestDetection
		latest = &ev
		stats.DetectionCount = len(ev.Detections)
		stats.CurrentFPS = ev.FPS
	}

	historyCopy := make([]DetectionEvent, len(m.detectionHistory))
	copy(historyCopy, m.detectionHistory)

	return stats, latest, historyCopy
}

// Reset forgets the latest event, used when the pipeline stops.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latestDetection = nil
}
