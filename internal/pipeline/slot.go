package pipeline

import (
	"sync"

	"github.com/dj-oyu/moodcam/internal/metrics"
	"github.com/dj-oyu/moodcam/pkg/types"
)

// Slot is the single-entry hand-off between producer and consumer. Publish
// replaces whatever is there; readers always see the most recent frame and
// never block on the producer for longer than a pointer swap.
type Slot struct {
	mu      sync.Mutex
	latest  *types.AnnotatedFrame
	fresh   bool // published and not yet taken
	metrics *metrics.Metrics
}

// NewSlot returns an empty slot. m may be nil.
func NewSlot(m *metrics.Metrics) *Slot {
	return &Slot{metrics: m}
}

// Publish stores af, overwriting an untaken frame. The caller gives up
// ownership of af.
func (s *Slot) Publish(af *types.AnnotatedFrame) {
	s.mu.Lock()
	overwrite := s.fresh
	s.latest = af
	s.fresh = true
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.SlotPublishes.Add(1)
		if overwrite {
			s.metrics.SlotOverwrites.Add(1)
		}
	}
}

// Take returns the latest frame if it was published since the previous
// Take; otherwise ok is false and the consumer should keep what it shows.
func (s *Slot) Take() (*types.AnnotatedFrame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.fresh || s.latest == nil {
		return nil, false
	}
	s.fresh = false
	return s.latest, true
}

// Peek returns the latest frame without marking it taken
func (s *Slot) Peek() (*types.AnnotatedFrame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest, s.latest != nil
}

// Clear empties the slot
func (s *Slot) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = nil
	s.fresh = false
}
