package webmonitor

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dj-oyu/moodcam/internal/logger"
	"github.com/dj-oyu/moodcam/pkg/types"
)

// FrameSource hands out the newest annotated frame since the previous call.
type FrameSource interface {
	Take() (*types.AnnotatedFrame, bool)
}

// hub fans values out to subscribers. Slow subscribers miss values instead
// of blocking the sender.
type hub[T any] struct {
	name    string
	mu      sync.Mutex
	clients map[int]chan T
	nextID  int
}

func newHub[T any](name string) *hub[T] {
	return &hub[T]{name: name, clients: make(map[int]chan T)}
}

// Subscribe adds a new client and returns a channel for receiving values.
func (h *hub[T]) Subscribe() (int, <-chan T) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan T, 2) // Buffer 2 values to avoid blocking
	h.clients[id] = ch

	logger.Debug(h.name, "Client #%d subscribed (total clients: %d)", id, len(h.clients))
	return id, ch
}

// Unsubscribe removes a client.
func (h *hub[T]) Unsubscribe(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.clients[id]; ok {
		close(ch)
		delete(h.clients, id)
		logger.Debug(h.name, "Client #%d unsubscribed (remaining clients: %d)", id, len(h.clients))
	}
}

func (h *hub[T]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *hub[T]) broadcast(v T) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.clients {
		select {
		case ch <- v:
		default:
			// Client too slow, skip this value for this client
		}
	}
}

func (h *hub[T]) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.clients {
		close(ch)
		delete(h.clients, id)
	}
}

// SerializedEvent holds pre-serialized data in both formats.
// This avoids redundant serialization when broadcasting to multiple clients.
type SerializedEvent struct {
	JSONData     []byte // Pre-serialized JSON
	ProtobufData []byte // google.protobuf.Struct, base64 encoded for SSE
}

// Broadcaster is the consumer side of the web mode: it polls the pipeline's
// latest-frame slot, encodes each new frame once and fans JPEG bytes and
// detection events out to the connected clients.
type Broadcaster struct {
	src      FrameSource
	monitor  *Monitor
	interval time.Duration
	quality  int

	frames     *hub[[]byte]
	detections *hub[*SerializedEvent]

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewBroadcaster creates a broadcaster polling src every interval.
func NewBroadcaster(src FrameSource, monitor *Monitor, interval time.Duration, quality int) *Broadcaster {
	return &Broadcaster{
		src:        src,
		monitor:    monitor,
		interval:   interval,
		quality:    quality,
		frames:     newHub[[]byte]("FrameBroadcaster"),
		detections: newHub[*SerializedEvent]("DetectionBroadcaster"),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start begins the poll and broadcast loop.
func (b *Broadcaster) Start() {
	go b.run()
}

// Stop halts the loop and disconnects every subscriber.
func (b *Broadcaster) Stop() {
	b.stopOnce.Do(func() {
		close(b.stop)
		<-b.done
		b.frames.closeAll()
		b.detections.closeAll()
	})
}

// SubscribeFrames returns a channel of JPEG-encoded annotated frames.
func (b *Broadcaster) SubscribeFrames() (int, <-chan []byte) { return b.frames.Subscribe() }

// UnsubscribeFrames removes a frame client.
func (b *Broadcaster) UnsubscribeFrames(id int) { b.frames.Unsubscribe(id) }

// SubscribeDetections returns a channel of detection events.
func (b *Broadcaster) SubscribeDetections() (int, <-chan *SerializedEvent) {
	return b.detections.Subscribe()
}

// UnsubscribeDetections removes a detection client.
func (b *Broadcaster) UnsubscribeDetections(id int) { b.detections.Unsubscribe(id) }

func (b *Broadcaster) run() {
	defer close(b.done)

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stop:
			return
		case <-ticker.C:
		}

		af, ok := b.src.Take()
		if !ok {
			continue
		}
		b.publish(af)
	}
}

func (b *Broadcaster) publish(af *types.AnnotatedFrame) {
	ev := newDetectionEvent(af)
	b.monitor.Record(ev)

	if b.frames.Len() > 0 {
		data, err := encodeJPEG(af.Frame.Image, b.quality)
		if err != nil {
			logger.Error("FrameBroadcaster", "JPEG encode error: %v", err)
		} else {
			b.frames.broadcast(data)
		}
	}

	if b.detections.Len() > 0 {
		event, err := serializeEvent(ev)
		if err != nil {
			logger.Error("DetectionBroadcaster", "%v", err)
			return
		}
		b.detections.broadcast(event)
	}
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// serializeEvent encodes ev as JSON and as a base64 protobuf Struct with the
// same field names.
func serializeEvent(ev DetectionEvent) (*SerializedEvent, error) {
	jsonData, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("JSON marshal error: %w", err)
	}

	var fields map[string]any
	if err := json.Unmarshal(jsonData, &fields); err != nil {
		return nil, fmt.Errorf("JSON decode error: %w", err)
	}
	st, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("protobuf struct error: %w", err)
	}
	pbData, err := proto.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("protobuf marshal error: %w", err)
	}

	return &SerializedEvent{
		JSONData:     jsonData,
		ProtobufData: []byte(base64.StdEncoding.EncodeToString(pbData)),
	}, nil
}
