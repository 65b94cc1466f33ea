package detector

import (
	"context"
	"sync"

	"codeberg.org/mutker/blinktrack/internal/blink"
	"codeberg.org/mutker/blinktrack/internal/config"
	"codeberg.org/mutker/blinktrack/internal/ear"
	"codeberg.org/mutker/blinktrack/internal/frame"
	"codeberg.org/mutker/blinktrack/internal/session"
)

// EARDetector detects blinks from eye landmarks.
type EARDetector struct {
	opts *options
	agg  *session.Aggregator

	mu          sync.Mutex
	settings    Settings
	smoother    *ear.Smoother
	baseline    *ear.BaselineTracker
	thresholder ear.Thresholder
	automaton   *blink.Automaton
}

func NewEAR(s Settings, opts ...Option) (*EARDetector, error) {
	if s.SmoothingWindow == 0 {
		s.SmoothingWindow = ear.DefaultSmoothingWindow
	}
	if s.BaselineWindow == 0 {
		s.BaselineWindow = ear.DefaultBaselineWindow
	}
	if err := validateThreshold(s.Threshold); err != nil {
		return nil, err
	}
	if err := validateFrames(s.ConsecutiveFrames); err != nil {
		return nil, err
	}

	o := newOptions(opts)
	baseline := ear.NewBaselineTracker(s.BaselineWindow, s.Threshold)
	baseline.SetEnabled(s.AdaptiveThreshold)

	return &EARDetector{
		opts:     o,
		agg:      session.NewAggregator(o.store, o.log),
		settings: s,
		smoother: ear.NewSmoother(s.SmoothingWindow),
		baseline: baseline,
		thresholder: ear.Thresholder{
			Static:   s.Threshold,
			Adaptive: s.AdaptiveThreshold,
			Glasses:  s.GlassesMode,
		},
		automaton: blink.NewAutomaton(s.ConsecutiveFrames),
	}, nil
}

func (d *EARDetector) Mode() config.Mode {
	return config.ModeEAR
}

// Start resets the signal pipeline and opens a new session.
func (d *EARDetector) Start(ctx context.Context) int64 {
	d.mu.Lock()
	d.smoother.Reset()
	d.baseline.Reset()
	d.automaton.Reset()
	threshold := d.thresholder.Threshold(0)
	d.mu.Unlock()

	id := d.agg.Start(ctx, d.opts.now())
	d.agg.SetThreshold(threshold)

	return id
}

func (d *EARDetector) ProcessFrame(ctx context.Context, f frame.Frame) bool {
	if !d.agg.Running() {
		return false
	}
	if d.agg.Paused() {
		d.agg.Tick(f.Timestamp)
		return false
	}

	left, right, found := d.opts.extractor.Process(f)

	d.mu.Lock()
	if !found {
		threshold := d.thresholder.Threshold(d.baseline.Baseline())
		baseline := d.baseline.Baseline()
		d.mu.Unlock()
		d.agg.Observe(f.Timestamp, 0, baseline, threshold)

		return false
	}

	value := d.smoother.Smooth(ear.FrameRatio(left, right))
	d.baseline.Update(value)
	baseline := d.baseline.Baseline()
	threshold := d.thresholder.Threshold(baseline)
	ev, fired := d.automaton.Step(value, threshold, f.Timestamp)
	d.mu.Unlock()

	d.agg.Observe(f.Timestamp, value, baseline, threshold)

	if fired {
		d.agg.RecordBlink(ctx, ev)
		d.opts.log.Debug().
			Int64("duration_ms", ev.DurationMs()).
			Float64("ear", ev.EAR).
			Float64("threshold", ev.Threshold).
			Msg("Blink detected")
		if d.opts.onBlink != nil {
			d.opts.onBlink(ev, d.agg.Snapshot())
		}
	}

	return true
}

func (d *EARDetector) Pause() {
	d.agg.Pause()
	d.opts.log.Info().Msg("Detection paused")
}

func (d *EARDetector) Resume() {
	d.agg.Resume()
	d.opts.log.Info().Msg("Detection resumed")
}

func (d *EARDetector) Stop(ctx context.Context) (session.Summary, bool) {
	return d.agg.Stop(ctx, d.opts.now())
}

func (d *EARDetector) Stats() session.Stats {
	return d.agg.Snapshot()
}

func (d *EARDetector) Settings() Settings {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.settings
}

// SetThreshold changes the static threshold, which also gates baseline samples.
func (d *EARDetector) SetThreshold(threshold float64) error {
	if err := validateThreshold(threshold); err != nil {
		return err
	}

	d.mu.Lock()
	d.settings.Threshold = threshold
	d.thresholder.Static = threshold
	d.baseline.SetGate(threshold)
	d.mu.Unlock()

	d.opts.log.Info().Float64("ear_threshold", threshold).Msg("EAR threshold set")

	return nil
}

func (d *EARDetector) SetConsecutiveFrames(frames int) error {
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

func (d *EARDetector) SetGlassesMode(enabled bool) error {
	d.mu.Lock()
	d.settings.GlassesMode = enabled
	d.thresholder.Glasses = enabled
	d.mu.Unlock()

	d.opts.log.Info().Bool("glasses_mode", enabled).Msg("Glasses mode set")

	return nil
}

func (d *EARDetector) SetAdaptiveThreshold(enabled bool) error {
	d.mu.Lock()
	d.settings.AdaptiveThreshold = enabled
	d.thresholder.Adaptive = enabled
	d.baseline.SetEnabled(enabled)
	d.mu.Unlock()

	d.opts.log.Info().Bool("adaptive_threshold", enabled).Msg("Adaptive threshold set")

	return nil
}
