package detector

import (
	"context"

	"codeberg.org/mutker/blinktrack/internal/config"
	"codeberg.org/mutker/blinktrack/internal/frame"
	"codeberg.org/mutker/blinktrack/internal/session"
)

// Detector turns frames into blinks for one tracking session at a time.
// ProcessFrame must be called from a single goroutine; the remaining
// methods are safe to call concurrently with it.
type Detector interface {
	Mode() config.Mode

	Start(ctx context.Context) int64
	// ProcessFrame feeds one frame through the pipeline. It reports whether
	// the frame produced a usable signal and never fails.
	ProcessFrame(ctx context.Context, f frame.Frame) bool
	Pause()
	Resume()
	Stop(ctx context.Context) (session.Summary, bool)
	Stats() session.Stats

	Settings() Settings
	SetThreshold(threshold float64) error
	SetConsecutiveFrames(frames int) error
	SetGlassesMode(enabled bool) error
	SetAdaptiveThreshold(enabled bool) error
}
