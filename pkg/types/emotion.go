package types

import (
	"fmt"
	"strings"
)

// Label is one of the closed set of emotion categories.
type Label int

// Canonical label order. Dominant() breaks ties toward the lower value.
const (
	Angry Label = iota
	Disgust
	Fear
	Happy
	Neutral
	Sad
	Surprise

	NumLabels = 7
)

var labelNames = [NumLabels]string{
	Angry:    "Angry",
	Disgust:  "Disgust",
	Fear:     "Fear",
	Happy:    "Happy",
	Neutral:  "Neutral",
	Sad:      "Sad",
	Surprise: "Surprise",
}

// Labels returns every label in canonical order
func Labels() []Label {
	out := make([]Label, NumLabels)
	for i := range out {
		out[i] = Label(i)
	}
	return out
}

// Valid reports whether l is part of the enumeration
func (l Label) Valid() bool {
	return l >= 0 && l < NumLabels
}

// String returns the display name of a label
func (l Label) String() string {
	if !l.Valid() {
		return fmt.Sprintf("Label(%d)", int(l))
	}
	return labelNames[l]
}

// ParseLabel resolves a label name case-insensitively
func ParseLabel(name string) (Label, error) {
	name = strings.TrimSpace(name)
	for i, n := range labelNames {
		if strings.EqualFold(n, name) {
			return Label(i), nil
		}
	}
	return 0, fmt.Errorf("unknown emotion label: %q", name)
}

// MarshalText implements encoding.TextMarshaler
func (l Label) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("invalid label %d", int(l))
	}
	return []byte(labelNames[l]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (l *Label) UnmarshalText(text []byte) error {
	parsed, err := ParseLabel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Prediction maps labels to scores in [0, 1].
type Prediction map[Label]float64

// Dominant returns the highest-scoring label. Labels are scanned in
// canonical order and only a strictly greater score replaces the current
// best, so ties resolve to the earliest label. ok is false when p is empty.
func (p Prediction) Dominant() (label Label, score float64, ok bool) {
	for _, l := range Labels() {
		s, present := p[l]
		if !present {
			continue
		}
		if !ok || s > score {
			label, score, ok = l, s, true
		}
	}
	return label, score, ok
}
