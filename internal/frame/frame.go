// Package frame defines the per-frame input of the tracker and the
// sources that deliver it.
package frame

import (
	"context"
	"time"

	"codeberg.org/mutker/blinktrack/internal/ear"
	"codeberg.org/mutker/blinktrack/internal/errors"
)

var errFactory = errors.New()

// Sample is the wire form of one frame as produced by an external
// landmark extractor. Landmarks and visibility are both optional.
type Sample struct {
	TS      int64          `json:"ts"`
	Left    *[6][2]float64 `json:"left,omitempty"`
	Right   *[6][2]float64 `json:"right,omitempty"`
	Visible *bool          `json:"visible,omitempty"`
	Eyes    int            `json:"eyes,omitempty"`
}

// Frame is one processed unit of input.
type Frame struct {
	Seq       uint64
	Timestamp time.Time
	Sample    Sample
}

// Source delivers frames. Read returns an ErrSourceClosed error when the
// source is exhausted and ErrReadFrame for transient failures.
type Source interface {
	Read(ctx context.Context) (Frame, error)
	Close() error
}

// LandmarkExtractor finds the eye landmarks of a frame. ok is false when
// no face was found.
type LandmarkExtractor interface {
	Process(f Frame) (left, right ear.Eye, ok bool)
}

// PresenceClassifier reports whether eyes are visible and how many.
type PresenceClassifier interface {
	Detect(f Frame) (visible bool, eyes int)
}

func toEye(pts *[6][2]float64) ear.Eye {
	var e ear.Eye
	for i, p := range pts {
		e[i] = ear.Point{X: p[0], Y: p[1]}
	}

	return e
}

// SampleExtractor reads landmarks carried by the sample.
type SampleExtractor struct{}

func (SampleExtractor) Process(f Frame) (ear.Eye, ear.Eye, bool) {
	s := f.Sample
	if s.Left == nil || s.Right == nil {
		return ear.Eye{}, ear.Eye{}, false
	}

	return toEye(s.Left), toEye(s.Right), true
}

// SampleClassifier reads the visibility flag carried by the sample. When
// the flag is absent it falls back to comparing the landmark ratio with
// OpenRatio.
type SampleClassifier struct {
	OpenRatio float64
}

func (c SampleClassifier) Detect(f Frame) (bool, int) {
	s := f.Sample
	if s.Visible != nil {
		eyes := s.Eyes
		if *s.Visible && eyes == 0 {
			eyes = 2
		}
		if !*s.Visible {
			eyes = 0
		}

		return *s.Visible, eyes
	}

	left, right, ok := SampleExtractor{}.Process(f)
	if !ok {
		return false, 0
	}

	open := c.OpenRatio
	if open <= 0 {
		open = ear.MinThreshold
	}

	n := 0
	for _, e := range []ear.Eye{left, right} {
		if ear.Ratio(e) >= open {
			n++
		}
	}

	return n > 0, n
}
