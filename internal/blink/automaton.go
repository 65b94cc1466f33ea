package blink

import "time"

// Automaton is the open/closed debounce machine driven by the smoothed
// eye aspect ratio.
type Automaton struct {
	state        State
	closedSince  time.Time
	closedFrames int
	earAtClosure float64
	required     int
}

func NewAutomaton(required int) *Automaton {
	if !validFrames(required) {
		required = DefaultConsecutiveFrames
	}

	return &Automaton{required: required}
}

// SetRequiredFrames changes the closed-frame gate. Out of range values
// are ignored and reported as false.
func (a *Automaton) SetRequiredFrames(n int) bool {
	if !validFrames(n) {
		return false
	}
	a.required = n

	return true
}

func (a *Automaton) RequiredFrames() int {
	return a.required
}

func (a *Automaton) State() State {
	return a.state
}

// ClosedFrames is the number of frames seen since the eye closed.
func (a *Automaton) ClosedFrames() int {
	return a.closedFrames
}

// Step advances the machine with one frame. It returns an event when the
// eye reopens after a closure whose duration and frame count qualify as
// a blink.
func (a *Automaton) Step(ear, threshold float64, now time.Time) (Event, bool) {
	if ear < threshold {
		if a.state == Open {
			a.state = Closed
			a.closedSince = now
			a.closedFrames = 0
			a.earAtClosure = ear
		}
		a.closedFrames++

		return Event{}, false
	}

	if a.state == Open {
		return Event{}, false
	}

	duration := now.Sub(a.closedSince)
	ok := duration >= MinDuration && duration <= MaxDuration && a.closedFrames >= a.required

	ev := Event{
		Timestamp:     now,
		Duration:      duration,
		DurationKnown: true,
		EAR:           a.earAtClosure,
		Threshold:     threshold,
	}
	a.Reset()

	return ev, ok
}

// Reset returns the machine to the open state.
func (a *Automaton) Reset() {
	a.state = Open
	a.closedSince = time.Time{}
	a.closedFrames = 0
	a.earAtClosure = 0
}
