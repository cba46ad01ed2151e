package webmonitor

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dj-oyu/moodcam/internal/pipeline"
	"github.com/dj-oyu/moodcam/pkg/types"
)

type fakePipeline struct {
	mu       sync.Mutex
	running  bool
	seq      uint64
	startErr error
}

func (p *fakePipeline) Take() (*types.AnnotatedFrame, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return nil, false
	}
	p.seq++
	img := image.NewNRGBA(image.Rect(0, 0, 64, 48))
	frame := types.NewFrame(img, p.seq, time.Now())
	return &types.AnnotatedFrame{
		Frame: frame,
		FPS:   12.5,
		Results: []types.AnnotatedResult{{
			Region:     types.Region{X: 4, Y: 6, W: 20, H: 22},
			Label:      types.Happy,
			Confidence: 0.9,
			Prediction: types.Prediction{types.Happy: 0.9, types.Sad: 0.1},
		}},
	}, true
}

func (p *fakePipeline) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.startErr != nil {
		return p.startErr
	}
	if p.running {
		return pipeline.ErrAlreadyRunning
	}
	p.running = true
	return nil
}

func (p *fakePipeline) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return pipeline.ErrNotRunning
	}
	p.running = false
	return nil
}

func (p *fakePipeline) Snapshot() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return "", pipeline.ErrNoFrame
	}
	return "snapshot_1700000000.png", nil
}

func (p *fakePipeline) Status() pipeline.Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return pipeline.Status{State: "running", Frames: p.seq}
	}
	return pipeline.Status{State: "idle"}
}

func newTestServer(t *testing.T, p Pipeline) *Server {
	t.Helper()
	cfg := DefaultConfig()
	cfg.MJPEGInterval = 5 * time.Millisecond
	s := NewServer(cfg, p)
	t.Cleanup(s.Close)
	return s
}

func do(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestControlEndpoints(t *testing.T) {
	p := &fakePipeline{}
	h := newTestServer(t, p).Handler()

	steps := []struct {
		method, path string
		want         int
	}{
		{http.MethodPost, "/api/snapshot", http.StatusConflict},
		{http.MethodPost, "/api/stop", http.StatusConflict},
		{http.MethodGet, "/api/start", http.StatusMethodNotAllowed},
		{http.MethodPost, "/api/start", http.StatusOK},
		{http.MethodPost, "/api/start", http.StatusConflict},
		{http.MethodPost, "/api/snapshot", http.StatusOK},
		{http.MethodPost, "/api/stop", http.StatusOK},
		{http.MethodPost, "/api/stop", http.StatusConflict},
	}
	for i, st := range steps {
		rec := do(t, h, st.method, st.path)
		if rec.Code != st.want {
			t.Fatalf("step %d: %s %s = %d, want %d (%s)", i, st.method, st.path, rec.Code, st.want, rec.Body.String())
		}
	}
}

func TestSnapshotReturnsPath(t *testing.T) {
	p := &fakePipeline{running: true}
	h := newTestServer(t, p).Handler()

	rec := do(t, h, http.MethodPost, "/api/snapshot")
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["file"] != "snapshot_1700000000.png" {
		t.Errorf("file = %q", body["file"])
	}
}

func TestStartFailure(t *testing.T) {
	p := &fakePipeline{startErr: errors.New("capture device unavailable")}
	h := newTestServer(t, p).Handler()

	rec := do(t, h, http.MethodPost, "/api/start")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("code = %d, want 503", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "capture device unavailable") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestStatusAndHealth(t *testing.T) {
	p := &fakePipeline{running: true}
	h := newTestServer(t, p).Handler()

	rec := do(t, h, http.MethodGet, "/api/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d", rec.Code)
	}
	var status struct {
		Pipeline pipeline.Status `json:"pipeline"`
		Monitor  MonitorStats    `json:"monitor"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.Pipeline.State != "running" {
		t.Errorf("pipeline state = %q", status.Pipeline.State)
	}

	rec = do(t, h, http.MethodGet, "/health")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("health = %d %s", rec.Code, rec.Body.String())
	}
}

func TestIndex(t *testing.T) {
	h := newTestServer(t, &fakePipeline{}).Handler()

	rec := do(t, h, http.MethodGet, "/")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "/api/detections/stream") {
		t.Errorf("index = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/missing"); rec.Code != http.StatusNotFound {
		t.Errorf("unknown path = %d, want 404", rec.Code)
	}
}

// firstEvent reads SSE lines until the first data payload.
func firstEvent(t *testing.T, body io.Reader) []byte {
	t.Helper()
	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		if data, ok := strings.CutPrefix(sc.Text(), "data: "); ok {
			return []byte(data)
		}
	}
	t.Fatalf("no event: %v", sc.Err())
	return nil
}

func openStream(t *testing.T, url, accept string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	return resp
}

func TestDetectionStreamJSON(t *testing.T) {
	p := &fakePipeline{running: true}
	ts := httptest.NewServer(newTestServer(t, p).Handler())
	t.Cleanup(ts.Close)

	resp := openStream(t, ts.URL+"/api/detections/stream", "")
	defer resp.Body.Close()

	if got := resp.Header.Get("X-Content-Format"); got != "application/json" {
		t.Errorf("format header = %q", got)
	}
	var ev DetectionEvent
	if err := json.Unmarshal(firstEvent(t, resp.Body), &ev); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if len(ev.Detections) != 1 {
		t.Fatalf("detections = %+v", ev.Detections)
	}
	d := ev.Detections[0]
	if d.Label != "Happy" || d.BBox != (BoundingBox{X: 4, Y: 6, W: 20, H: 22}) || d.Scores["Sad"] != 0.1 {
		t.Errorf("detection = %+v", d)
	}
	if ev.FPS != 12.5 || ev.FrameNumber == 0 {
		t.Errorf("event = %+v", ev)
	}
}

func TestDetectionStreamProtobuf(t *testing.T) {
	p := &fakePipeline{running: true}
	ts := httptest.NewServer(newTestServer(t, p).Handler())
	t.Cleanup(ts.Close)

	resp := openStream(t, ts.URL+"/api/detections/stream", "application/protobuf")
	defer resp.Body.Close()

	raw, err := base64.StdEncoding.DecodeString(string(firstEvent(t, resp.Body)))
	if err != nil {
		t.Fatalf("base64: %v", err)
	}
	var st structpb.Struct
	if err := proto.Unmarshal(raw, &st); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	dets := st.Fields["detections"].GetListValue().GetValues()
	if len(dets) != 1 {
		t.Fatalf("detections = %v", dets)
	}
	if got := dets[0].GetStructValue().Fields["label"].GetStringValue(); got != "Happy" {
		t.Errorf("label = %q", got)
	}
}

func TestMJPEGStream(t *testing.T) {
	p := &fakePipeline{running: true}
	ts := httptest.NewServer(newTestServer(t, p).Handler())
	t.Cleanup(ts.Close)

	resp := openStream(t, ts.URL+"/stream", "")
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "multipart/x-mixed-replace") {
		t.Fatalf("content type = %q", ct)
	}
	head := []byte("--frame\r\nContent-Type: image/jpeg\r\n\r\n")
	buf := make([]byte, len(head)+2)
	if _, err := io.ReadFull(resp.Body, buf); err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(buf[:len(head)], head) {
		t.Errorf("part header = %q", buf[:len(head)])
	}
	if buf[len(head)] != 0xFF || buf[len(head)+1] != 0xD8 {
		t.Errorf("part is not a JPEG: % x", buf[len(head):])
	}
}

func TestMonitorHistory(t *testing.T) {
	m := NewMonitor(2)
	for i := 1; i <= 3; i++ {
		m.Record(DetectionEvent{FrameNumber: uint64(i), Detections: []Detection{{Label: "Happy"}}})
	}
	m.Record(DetectionEvent{FrameNumber: 4, FPS: 9})

	stats, latest, history := m.Snapshot()
	if stats.FramesSeen != 4 || stats.DetectionCount != 0 || stats.CurrentFPS != 9 {
		t.Errorf("stats = %+v", stats)
	}
	if latest == nil || latest.FrameNumber != 4 {
		t.Errorf("latest = %+v", latest)
	}
	if len(history) != 2 || history[0].FrameNumber != 3 || history[1].FrameNumber != 2 {
		t.Errorf("history = %+v", history)
	}

	m.Reset()
	if _, latest, _ := m.Snapshot(); latest != nil {
		t.Error("Reset kept the latest event")
	}
}

func TestHubDropsForSlowClient(t *testing.T) {
	h := newHub[int]("test")
	id, ch := h.Subscribe()
	for i := 0; i < 5; i++ {
		h.broadcast(i)
	}
	if len(ch) != 2 {
		t.Errorf("buffered %d values, want 2", len(ch))
	}
	h.Unsubscribe(id)
	h.Unsubscribe(id)
	if h.Len() != 0 {
		t.Errorf("Len = %d", h.Len())
	}
}
