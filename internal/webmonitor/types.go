package webmonitor

import (
	"github.com/dj-oyu/moodcam/pkg/types"
)

// BoundingBox is a face region in frame pixels.
type BoundingBox struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Detection is one classified face.
type Detection struct {
	Label      string             `json:"label"`
	Confidence float64            `json:"confidence"`
	BBox       BoundingBox        `json:"bbox"`
	Scores     map[string]float64 `json:"scores"`
}

// DetectionEvent is the payload for /api/detections/stream.
type DetectionEvent struct {
	FrameNumber uint64      `json:"frame_number"`
	Timestamp   float64     `json:"timestamp"`
	FPS         float64     `json:"fps"`
	Detections  []Detection `json:"detections"`
}

// MonitorStats summarizes what the broadcaster has seen.
type MonitorStats struct {
	FramesSeen     uint64  `json:"frames_seen"`
	DetectionCount int     `json:"detection_count"`
	CurrentFPS     float64 `json:"current_fps"`
	UptimeSeconds  float64 `json:"uptime_seconds"`
	StreamClients  int     `json:"stream_clients"`
	EventClients   int     `json:"event_clients"`
}

func newDetectionEvent(af *types.AnnotatedFrame) DetectionEvent {
	ev := DetectionEvent{
		FrameNumber: af.Frame.Seq,
		Timestamp:   float64(af.Frame.Timestamp.UnixNano()) / 1e9,
		FPS:         af.FPS,
		Detections:  make([]Detection, 0, len(af.Results)),
	}
	for _, res := range af.Results {
		scores := make(map[string]float64, len(res.Prediction))
		for label, p := range res.Prediction {
			scores[label.String()] = p
		}
		ev.Detections = append(ev.Detections, Detection{
			Label:      res.Label.String(),
			Confidence: res.Confidence,
			BBox: BoundingBox{
				X: res.Region.X,
				Y: res.Region.Y,
				W: res.Region.W,
				H: res.Region.H,
			},
			Scores: scores,
		})
	}
	return ev
}
