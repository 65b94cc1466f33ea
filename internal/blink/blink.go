// Package blink turns per-frame eye signals into blink events.
package blink

import "time"

const (
	MinDuration = 30 * time.Millisecond
	MaxDuration = 500 * time.Millisecond

	DefaultConsecutiveFrames         = 1
	DefaultPresenceConsecutiveFrames = 2
	MinConsecutiveFrames             = 1
	MaxConsecutiveFrames             = 10
)

// Event is a completed blink.
type Event struct {
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration"`
	// DurationKnown is false for events derived from eye presence only.
	DurationKnown bool    `json:"duration_known"`
	EAR           float64 `json:"ear"`
	Threshold     float64 `json:"threshold"`
}

// DurationMs returns the duration in milliseconds, or -1 when unknown.
func (e Event) DurationMs() int64 {
	if !e.DurationKnown {
		return -1
	}

	return e.Duration.Milliseconds()
}

type State int

const (
	Open State = iota
	Closed
)

func (s State) String() string {
	if s == Closed {
		return "closed"
	}

	return "open"
}

func validFrames(n int) bool {
	return n >= MinConsecutiveFrames && n <= MaxConsecutiveFrames
}
