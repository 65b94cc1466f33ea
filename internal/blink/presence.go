package blink

import "time"

// PresenceAutomaton detects blinks from a coarse eyes-visible signal.
// A blink is a run of frames without visible eyes followed by their return.
type PresenceAutomaton struct {
	prevVisible       bool
	framesWithoutEyes int
	eyeCount          int
	required          int
}

func NewPresenceAutomaton(required int) *PresenceAutomaton {
	if !validFrames(required) {
		required = DefaultPresenceConsecutiveFrames
	}

	return &PresenceAutomaton{prevVisible: true, required: required}
}

func (p *PresenceAutomaton) SetRequiredFrames(n int) bool {
	if !validFrames(n) {
		return false
	}
	p.required = n

	return true
}

func (p *PresenceAutomaton) RequiredFrames() int {
	return p.required
}

func (p *PresenceAutomaton) FramesWithoutEyes() int {
	return p.framesWithoutEyes
}

// EyeCount is the number of eyes reported by the last frame.
func (p *PresenceAutomaton) EyeCount() int {
	return p.eyeCount
}

// Step advances the machine with one classifier result.
func (p *PresenceAutomaton) Step(visible bool, eyes int, now time.Time) (Event, bool) {
	p.eyeCount = eyes

	if !visible && p.prevVisible {
		p.framesWithoutEyes = 0
	}
	p.prevVisible = visible

	if !visible {
		p.framesWithoutEyes++
		return Event{}, false
	}

	fired := p.framesWithoutEyes >= p.required
	p.framesWithoutEyes = 0
	if !fired {
		return Event{}, false
	}

	return Event{Timestamp: now}, true
}

func (p *PresenceAutomaton) Reset() {
	p.prevVisible = true
	p.framesWithoutEyes = 0
	p.eyeCount = 0
}
