// Package session aggregates blink counters and timing for a tracking session.
package session

import (
	"context"
	"math"
	"sync"
	"time"

	"codeberg.org/mutker/blinktrack/internal/blink"
	"codeberg.org/mutker/blinktrack/internal/logger"
)

// Stats is a point-in-time copy of the session counters.
type Stats struct {
	SessionID       int64         `json:"session_id"`
	Running         bool          `json:"running"`
	Paused          bool          `json:"is_paused"`
	SessionStart    time.Time     `json:"session_start"`
	SessionBlinks   int           `json:"session_blinks"`
	TotalBlinks     int           `json:"total_blinks"`
	Duration        time.Duration `json:"-"`
	DurationSeconds int           `json:"session_duration"`
	BlinksPerMinute float64       `json:"blinks_per_minute"`
	CurrentEAR      float64       `json:"current_ear"`
	BaselineEAR     float64       `json:"baseline_ear"`
	ActiveThreshold float64       `json:"active_threshold"`
	EyesDetected    bool          `json:"eyes_detected"`
	LastBlink       time.Time     `json:"last_blink,omitempty"`
}

// Rate returns blinks per minute over d, rounded to one decimal.
// It is 0 when d is under a second.
func Rate(blinks int, d time.Duration) float64 {
	secs := math.Floor(d.Seconds())
	if secs <= 0 {
		return 0
	}

	return round1(float64(blinks) * 60 / secs)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// Aggregator owns the session lifecycle. The tracking loop is the only
// writer; Snapshot may be called from any goroutine.
type Aggregator struct {
	store Persistence
	log   logger.Logger

	mu        sync.RWMutex
	sessionID int64
	running   bool
	paused    bool
	start     time.Time
	lastSeen  time.Time
	blinks    int
	total     int
	lastBlink time.Time

	currentEAR   float64
	baselineEAR  float64
	threshold    float64
	eyesDetected bool
}

func NewAggregator(store Persistence, log logger.Logger) *Aggregator {
	if log == nil {
		log = logger.Default()
	}

	return &Aggregator{store: store, log: log.With("session")}
}

// Start begins a new session at now and returns its id. A persistence
// failure leaves the id at 0 and the session running in memory only.
func (a *Aggregator) Start(ctx context.Context, now time.Time) int64 {
	var id int64
	total := 0

	if a.store != nil {
		var err error
		if id, err = a.store.CreateSession(ctx, now); err != nil {
			a.log.Error().Err(err).Msg("failed to create session")
			id = 0
		}
		if total, err = a.store.TotalBlinkCount(ctx); err != nil {
			a.log.Error().Err(err).Msg("failed to load total blink count")
			total = 0
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.sessionID = id
	a.running = true
	a.paused = false
	a.start = now
	a.lastSeen = now
	a.blinks = 0
	a.total = total
	a.lastBlink = time.Time{}
	a.currentEAR = 0
	a.baselineEAR = 0
	a.eyesDetected = false

	a.log.Info().Int64("session_id", id).Int("total_blinks", total).Msg("Session started")

	return id
}

// Observe records the signal of the latest processed frame.
func (a *Aggregator) Observe(now time.Time, ear, baseline, threshold float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.advance(now)
	a.currentEAR = ear
	a.baselineEAR = baseline
	a.threshold = threshold
	a.eyesDetected = ear > 0
}

// ObservePresence records the latest eye visibility for detectors without a ratio.
func (a *Aggregator) ObservePresence(now time.Time, visible bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.advance(now)
	a.eyesDetected = visible
}

// Tick moves the session clock without changing the signal.
func (a *Aggregator) Tick(now time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.advance(now)
}

func (a *Aggregator) advance(now time.Time) {
	if a.running && now.After(a.lastSeen) {
		a.lastSeen = now
	}
}

// RecordBlink counts ev and forwards it to persistence.
func (a *Aggregator) RecordBlink(ctx context.Context, ev blink.Event) {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.advance(ev.Timestamp)
	a.blinks++
	a.total++
	a.lastBlink = ev.Timestamp
	id := a.sessionID
	a.mu.Unlock()

	if a.store == nil {
		return
	}
	if err := a.store.RecordBlink(ctx, id, ev); err != nil {
		a.log.Error().Err(err).Int64("session_id", id).Msg("failed to record blink")
	}
}

func (a *Aggregator) Pause() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.paused = true
}

func (a *Aggregator) Resume() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.paused = false
}

func (a *Aggregator) Paused() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.paused
}

func (a *Aggregator) Running() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.running
}

// Stop freezes the session duration at now, stores the summary and
// clears the session id. Stopping an idle aggregator is a no-op.
func (a *Aggregator) Stop(ctx context.Context, now time.Time) (Summary, bool) {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return Summary{}, false
	}
	a.advance(now)
	summary := Summary{
		SessionID: a.sessionID,
		Start:     a.start,
		End:       a.lastSeen,
		Blinks:    a.blinks,
		Duration:  a.lastSeen.Sub(a.start),
	}
	a.running = false
	a.paused = false
	a.sessionID = 0
	a.mu.Unlock()

	if a.store != nil {
		if summary.SessionID > 0 {
			if err := a.store.EndSession(ctx, summary.SessionID, summary.End); err != nil {
				a.log.Error().Err(err).Int64("session_id", summary.SessionID).Msg("failed to end session")
			}
		}
		if err := a.store.SaveSessionSummary(ctx, summary); err != nil {
			a.log.Error().Err(err).Int64("session_id", summary.SessionID).Msg("failed to save session summary")
		}
	}

	a.log.Info().
		Int64("session_id", summary.SessionID).
		Int("session_blinks", summary.Blinks).
		Dur("duration", summary.Duration).
		Float64("blinks_per_minute", summary.BlinksPerMinute()).
		Msg("Session stopped")

	return summary, true
}

// Snapshot returns a copy of the current counters.
func (a *Aggregator) Snapshot() Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	d := a.lastSeen.Sub(a.start)
	if a.start.IsZero() {
		d = 0
	}

	return Stats{
		SessionID:       a.sessionID,
		Running:         a.running,
		Paused:          a.paused,
		SessionStart:    a.start,
		SessionBlinks:   a.blinks,
		TotalBlinks:     a.total,
		Duration:        d,
		DurationSeconds: int(d.Seconds()),
		BlinksPerMinute: Rate(a.blinks, d),
		CurrentEAR:      round3(a.currentEAR),
		BaselineEAR:     round3(a.baselineEAR),
		ActiveThreshold: round3(a.threshold),
		EyesDetected:    a.eyesDetected,
		LastBlink:       a.lastBlink,
	}
}

// SetThreshold updates the reported threshold outside of frame processing.
func (a *Aggregator) SetThreshold(threshold float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.threshold = threshold
}
