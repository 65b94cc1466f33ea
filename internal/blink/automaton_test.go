package blink

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const threshold = 0.2

var epoch = time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)

type sample struct {
	at  time.Duration
	ear float64
}

func run(a *Automaton, samples []sample) []Event {
	var events []Event
	for _, s := range samples {
		if ev, ok := a.Step(s.ear, threshold, epoch.Add(s.at)); ok {
			events = append(events, ev)
		}
	}

	return events
}

// dip builds an open/closed/open sequence at roughly 30fps.
func dip(closedFor time.Duration) []sample {
	const frame = 33 * time.Millisecond
	out := []sample{{0, 0.3}, {frame, 0.3}}
	start := 2 * frame
	for t := time.Duration(0); t < closedFor; t += frame {
		out = append(out, sample{start + t, 0.1})
	}
	out = append(out, sample{start + closedFor, 0.3})

	return out
}

func TestBlinkWithinWindow(t *testing.T) {
	a := NewAutomaton(DefaultConsecutiveFrames)
	events := run(a, dip(150*time.Millisecond))

	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, 150*time.Millisecond, ev.Duration)
	assert.True(t, ev.DurationKnown)
	assert.Equal(t, int64(150), ev.DurationMs())
	assert.InDelta(t, 0.1, ev.EAR, 1e-9)
	assert.InDelta(t, threshold, ev.Threshold, 1e-9)
	assert.Equal(t, Open, a.State())
	assert.Equal(t, 0, a.ClosedFrames())
}

func TestDipTooShort(t *testing.T) {
	a := NewAutomaton(DefaultConsecutiveFrames)
	events := run(a, []sample{
		{0, 0.3},
		{10 * time.Millisecond, 0.1},
		{20 * time.Millisecond, 0.3},
	})

	assert.Empty(t, events)
	assert.Equal(t, Open, a.State())
}

func TestDipTooLong(t *testing.T) {
	a := NewAutomaton(DefaultConsecutiveFrames)
	events := run(a, dip(600*time.Millisecond))

	assert.Empty(t, events)
	assert.Equal(t, Open, a.State())
}

func TestBoundaryDurations(t *testing.T) {
	for _, d := range []time.Duration{MinDuration, MaxDuration} {
		a := NewAutomaton(1)
		events := run(a, []sample{{0, 0.3}, {time.Millisecond, 0.1}, {time.Millisecond + d, 0.3}})
		assert.Len(t, events, 1, d.String())
	}
}

func TestFrameCountGate(t *testing.T) {
	samples := []sample{
		{0, 0.3},
		{33 * time.Millisecond, 0.1},
		{66 * time.Millisecond, 0.1},
		{99 * time.Millisecond, 0.3},
	}

	a := NewAutomaton(3)
	assert.Empty(t, run(a, samples), "two closed frames do not satisfy a gate of three")

	a = NewAutomaton(2)
	assert.Len(t, run(a, samples), 1)
}

func TestClosedFramesCountsTransitionFrame(t *testing.T) {
	a := NewAutomaton(1)
	_, ok := a.Step(0.1, threshold, epoch)
	assert.False(t, ok)
	assert.Equal(t, Closed, a.State())
	assert.Equal(t, 1, a.ClosedFrames())
}

func TestSetRequiredFrames(t *testing.T) {
	a := NewAutomaton(0)
	assert.Equal(t, DefaultConsecutiveFrames, a.RequiredFrames())

	assert.True(t, a.SetRequiredFrames(10))
	assert.False(t, a.SetRequiredFrames(11))
	assert.False(t, a.SetRequiredFrames(0))
	assert.Equal(t, 10, a.RequiredFrames())
}

func TestOpenFramesDoNothing(t *testing.T) {
	a := NewAutomaton(1)
	for i := 0; i < 10; i++ {
		_, ok := a.Step(0.3, threshold, epoch.Add(time.Duration(i)*time.Second))
		assert.False(t, ok)
	}
	assert.Equal(t, Open, a.State())
}
