// Package ear computes the eye aspect ratio signal and the adaptive
// closed-eye threshold derived from it.
package ear

import "math"

const (
	DefaultStaticThreshold = 0.25
	DefaultSmoothingWindow = 3
	DefaultBaselineWindow  = 30

	DropNormal  = 0.08
	DropGlasses = 0.06

	MinThreshold = 0.15
	MaxThreshold = 0.30
)

// Point is a landmark position in pixel space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Eye holds the six landmarks of one eye in canonical order:
// 0 and 3 are the horizontal corners, 1/5 and 2/4 the vertical pairs.
type Eye [6]Point

func dist(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// Ratio returns the eye aspect ratio of a single eye. Degenerate
// geometry with zero width yields 0.
func Ratio(e Eye) float64 {
	h := dist(e[0], e[3])
	if h == 0 {
		return 0
	}

	v1 := dist(e[1], e[5])
	v2 := dist(e[2], e[4])

	return (v1 + v2) / (2 * h)
}

// FrameRatio averages the ratio of both eyes.
func FrameRatio(left, right Eye) float64 {
	return (Ratio(left) + Ratio(right)) / 2
}
