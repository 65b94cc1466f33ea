package telemetry

import (
	"context"
	"net/http"
	"time"

	"codeberg.org/mutker/blinktrack/internal/blink"
)

// Collector defines the core domain interface
type Collector interface {
	Record(ctx context.Context, snapshot *Snapshot) error
	ObserveFrame(ok bool)
	ObserveBlink(ev blink.Event)
	ObserveAlert(status string)
	Handler() http.Handler
	Close() error
}

// Snapshot is the detector state exported as gauges.
type Snapshot struct {
	Timestamp time.Time
	EAR       EARMetrics
	Session   SessionMetrics
}

type EARMetrics struct {
	Current   float64
	Baseline  float64
	Threshold float64
}

type SessionMetrics struct {
	Blinks          int
	BlinksPerMinute float64
	Duration        time.Duration
	Running         bool
	Paused          bool
}
