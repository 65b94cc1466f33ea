package detector

import (
	"context"
	"sync"

	"codeberg.org/mutker/blinktrack/internal/blink"
	"codeberg.org/mutker/blinktrack/internal/config"
	"codeberg.org/mutker/blinktrack/internal/frame"
	"codeberg.org/mutker/blinktrack/internal/session"
)

// PresenceDetector detects blinks from a coarse eyes-visible signal. It
// is used when landmarks are unavailable. The ratio settings are kept for
// reporting but do not affect detection.
type PresenceDetector struct {
	opts *options
	agg  *session.Aggregator

	mu        sync.Mutex
	settings  Settings
	automaton *blink.PresenceAutomaton
}

func NewPresence(s Settings, opts ...Option) (*PresenceDetector, error) {
	if s.ConsecutiveFrames == 0 {
		s.ConsecutiveFrames = blink.DefaultPresenceConsecutiveFrames
	}
	if err := validateThreshold(s.Threshold); err != nil {
		return nil, err
	}
	if err := validateFrames(s.ConsecutiveFrames); err != nil {
		return nil, err
	}

	o := newOptions(opts)

	return &PresenceDetector{
		opts:      o,
		agg:       session.NewAggregator(o.store, o.log),
		settings:  s,
		automaton: blink.NewPresenceAutomaton(s.ConsecutiveFrames),
	}, nil
}

func (d *PresenceDetector) Mode() config.Mode {
	return config.ModePresence
}

func (d *PresenceDetector) Start(ctx context.Context) int64 {
	d.mu.Lock()
	d.automaton.Reset()
	d.mu.Unlock()

	return d.agg.Start(ctx, d.opts.now())
}

func (d *PresenceDetector) ProcessFrame(ctx context.Context, f frame.Frame) bool {
	if !d.agg.Running() {
		return false
	}
	if d.agg.Paused() {
		d.agg.Tick(f.Timestamp)
		return false
	}

	visible, eyes := d.opts.presence.Detect(f)

	d.mu.Lock()
	ev, fired := d.automaton.Step(visible, eyes, f.Timestamp)
	d.mu.Unlock()

	d.agg.ObservePresence(f.Timestamp, visible)

	if fired {
		d.agg.RecordBlink(ctx, ev)
		d.opts.log.Debug().Int("eyes", eyes).Msg("Blink detected")
		if d.opts.onBlink != nil {
			d.opts.onBlink(ev, d.agg.Snapshot())
		}
	}

	return true
}

func (d *PresenceDetector) Pause() {
	d.agg.Pause()
	d.opts.log.Info().Msg("Detection paused")
}

func (d *PresenceDetector) Resume() {
	d.agg.Resume()
	d.opts.log.Info().Msg("Detection resumed")
}

func (d *PresenceDetector) Stop(ctx context.Context) (session.Summary, bool) {
	return d.agg.Stop(ctx, d.opts.now())
}

func (d *PresenceDetector) Stats() session.Stats {
	return d.agg.Snapshot()
}

func (d *PresenceDetector) Settings() Settings {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.settings
}

func (d *PresenceDetector) SetThreshold(threshold float64) error {
	if err := validateThreshold(threshold); err != nil {
		return err
	}

	d.mu.Lock()
	d.settings.Threshold = threshold
	d.mu.Unlock()

	return nil
}

func (d *PresenceDetector) SetConsecutiveFrames(frames int) error {
	if err := validateFrames(frames); err != nil {
		return err
	}

	d.mu.Lock()
	d.settings.ConsecutiveFrames = frames
	d.automaton.SetRequiredFrames(frames)
	d.mu.Unlock()

	d.opts.log.Info().Int("consecutive_frames", frames).Msg("Consecutive frames set")

	return nil
}

func (d *PresenceDetector) SetGlassesMode(enabled bool) error {
	d.mu.Lock()
	d.settings.GlassesMode = enabled
	d.mu.Unlock()

	return nil
}

func (d *PresenceDetector) SetAdaptiveThreshold(enabled bool) error {
	d.mu.Lock()
	d.settings.AdaptiveThreshold = enabled
	d.mu.Unlock()

	return nil
}
