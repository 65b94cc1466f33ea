package ear

// Thresholder derives the closed-eye decision threshold.
type Thresholder struct {
	Static   float64
	Adaptive bool
	Glasses  bool
}

func NewThresholder() Thresholder {
	return Thresholder{
		Static:   DefaultStaticThreshold,
		Adaptive: true,
	}
}

// Drop returns how far below the baseline the threshold sits.
func (t Thresholder) Drop() float64 {
	if t.Glasses {
		return DropGlasses
	}

	return DropNormal
}

// Threshold returns baseline minus drop, clamped to [MinThreshold, MaxThreshold].
// The static threshold applies while the baseline is unset or adaptive mode is off.
func (t Thresholder) Threshold(baseline float64) float64 {
	if !t.Adaptive || baseline == 0 {
		return t.Static
	}

	return clamp(baseline-t.Drop(), MinThreshold, MaxThreshold)
}

func clamp(value, minValue, maxValue float64) float64 {
	if value < minValue {
		return minValue
	}

	if value > maxValue {
		return maxValue
	}

	return value
}
