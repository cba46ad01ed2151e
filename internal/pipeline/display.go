package pipeline

import (
	"time"

	"github.com/dj-oyu/moodcam/pkg/types"
)

// Command is a user request read from a display between frames
type Command int

const (
	CommandNone Command = iota
	CommandQuit
	CommandSnapshot
)

func (c Command) String() string {
	switch c {
	case CommandQuit:
		return "quit"
	case CommandSnapshot:
		return "snapshot"
	default:
		return "none"
	}
}

// Display presents annotated frames and reports user commands. All methods
// are called from one goroutine.
type Display interface {
	Show(frame *types.Frame) error
	Poll() Command
	Close() error
}

// NullDisplay drops frames and never issues commands. Used for headless runs.
type NullDisplay struct{}

func (NullDisplay) Show(*types.Frame) error { return nil }
func (NullDisplay) Poll() Command           { return CommandNone }
func (NullDisplay) Close() error            { return nil }

// pace waits until interval has passed since started. It returns false when
// stop fires first.
func pace(stop <-chan struct{}, started time.Time, interval time.Duration) bool {
	remaining := interval - time.Since(started)
	if remaining <= 0 {
		select {
		case <-stop:
			return false
		default:
			return true
		}
	}

	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-stop:
		return false
	case <-timer.C:
		return true
	}
}
