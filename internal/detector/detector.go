// Package detector wires the signal pipeline and blink automatons into
// the detector variants selected at session start.
package detector

import (
	"time"

	"codeberg.org/mutker/blinktrack/internal/blink"
	"codeberg.org/mutker/blinktrack/internal/config"
	"codeberg.org/mutker/blinktrack/internal/errors"
	"codeberg.org/mutker/blinktrack/internal/frame"
	"codeberg.org/mutker/blinktrack/internal/logger"
	"codeberg.org/mutker/blinktrack/internal/session"
)

var errFactory = errors.New()

// Settings are the runtime tunables of a detector.
type Settings struct {
	Threshold         float64 `json:"ear_threshold"`
	ConsecutiveFrames int     `json:"consecutive_frames"`
	GlassesMode       bool    `json:"glasses_mode"`
	AdaptiveThreshold bool    `json:"adaptive_threshold"`
	SmoothingWindow   int     `json:"-"`
	BaselineWindow    int     `json:"-"`
}

var (
	_ Detector = (*EARDetector)(nil)
	_ Detector = (*PresenceDetector)(nil)
)

// SettingsFromConfig takes the detector section of the loaded configuration.
func SettingsFromConfig(c config.DetectorConfig) Settings {
	frames := c.ConsecutiveFrames
	if c.Mode == config.ModePresence {
		frames = c.PresenceConsecutiveFrames
	}

	return Settings{
		Threshold:         c.EARThreshold,
		ConsecutiveFrames: frames,
		GlassesMode:       c.GlassesMode,
		AdaptiveThreshold: c.AdaptiveThreshold,
		SmoothingWindow:   c.SmoothingWindow,
		BaselineWindow:    c.BaselineWindow,
	}
}

// Validate reports the first tunable in s that a setter would reject.
func Validate(s Settings) error {
	if err := validateThreshold(s.Threshold); err != nil {
		return err
	}

	return validateFrames(s.ConsecutiveFrames)
}

func validateThreshold(t float64) error {
	if !config.ValidThreshold(t) {
		return errFactory.WithData(errors.ErrInvalidThreshold, t)
	}

	return nil
}

func validateFrames(n int) error {
	if !config.ValidConsecutiveFrames(n) {
		return errFactory.WithData(errors.ErrInvalidConsecutiveFrames, n)
	}

	return nil
}

// BlinkHandler is called after a blink is counted, with the updated stats.
type BlinkHandler func(ev blink.Event, stats session.Stats)

type options struct {
	store     session.Persistence
	log       logger.Logger
	now       func() time.Time
	onBlink   BlinkHandler
	extractor frame.LandmarkExtractor
	presence  frame.PresenceClassifier
}

type Option func(*options)

// WithPersistence stores sessions and blinks.
func WithPersistence(p session.Persistence) Option {
	return func(o *options) {
		o.store = p
	}
}

func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// WithClock sets the clock used for session start and stop.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func WithBlinkHandler(h BlinkHandler) Option {
	return func(o *options) {
		o.onBlink = h
	}
}

func WithExtractor(e frame.LandmarkExtractor) Option {
	return func(o *options) {
		o.extractor = e
	}
}

func WithClassifier(c frame.PresenceClassifier) Option {
	return func(o *options) {
		o.presence = c
	}
}

func newOptions(opts []Option) *options {
	o := &options{
		log:       logger.Default(),
		now:       time.Now,
		extractor: frame.SampleExtractor{},
		presence:  frame.SampleClassifier{},
	}
	for _, opt := range opts {
		opt(o)
	}

	return o
}

// New returns the detector variant for mode.
func New(mode config.Mode, s Settings, opts ...Option) (Detector, error) {
	switch mode {
	case config.ModeEAR:
		d, err := NewEAR(s, opts...)
		if err != nil {
			return nil, err
		}
		return d, nil
	case config.ModePresence:
		d, err := NewPresence(s, opts...)
		if err != nil {
			return nil, err
		}
		return d, nil
	default:
		return nil, errFactory.WithData(errors.ErrInvalidMode, mode)
	}
}
