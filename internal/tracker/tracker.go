// Package tracker runs the frame loop and owns the tracking session
// lifecycle shared by the daemon and the dashboard.
package tracker

import (
	"context"
	"sync"
	"time"

	"codeberg.org/mutker/blinktrack/internal/blink"
	"codeberg.org/mutker/blinktrack/internal/config"
	"codeberg.org/mutker/blinktrack/internal/detector"
	"codeberg.org/mutker/blinktrack/internal/errors"
	"codeberg.org/mutker/blinktrack/internal/frame"
	"codeberg.org/mutker/blinktrack/internal/health"
	"codeberg.org/mutker/blinktrack/internal/logger"
	"codeberg.org/mutker/blinktrack/internal/session"
	"codeberg.org/mutker/blinktrack/internal/telemetry"
)

var errFactory = errors.New()

const (
	progressEvery  = 100
	readBackoff    = 100 * time.Millisecond
	finishTimeout  = 5 * time.Second
	defaultMaxFail = config.DefaultMaxFailedReads
)

// Message types pushed to the broadcaster.
const (
	MessageStatus       = "status_update"
	MessageBlink        = "blink_detected"
	MessageHealth       = "health_insight"
	MessageSessionEnded = "session_ended"
)

// State is the coarse tracking state.
type State string

const (
	StateStopped State = "stopped"
	StateRunning State = "running"
	StatePaused  State = "paused"
)

// Status is what the dashboard shows.
type Status struct {
	State    State             `json:"state"`
	Mode     config.Mode       `json:"mode"`
	Stats    session.Stats     `json:"stats"`
	Settings detector.Settings `json:"settings"`
	Frames   uint64            `json:"frames"`
}

// BlinkPayload is broadcast for every counted blink.
type BlinkPayload struct {
	Timestamp     time.Time `json:"timestamp"`
	DurationMs    int64     `json:"duration_ms"`
	EAR           float64   `json:"ear"`
	SessionBlinks int       `json:"session_blinks"`
	TotalBlinks   int       `json:"total_blinks"`
}

// Broadcaster pushes typed messages to connected clients.
type Broadcaster interface {
	Broadcast(msgType string, payload any)
}

// SourceFactory opens a frame source for a new session.
type SourceFactory func(ctx context.Context) (frame.Source, error)

type options struct {
	store       session.Persistence
	openSource  SourceFactory
	monitor     *health.Monitor
	telemetry   telemetry.Collector
	broadcaster Broadcaster
	log         logger.Logger
	now         func() time.Time
	detOpts     []detector.Option
}

type Option func(*options)

func WithPersistence(p session.Persistence) Option {
	return func(o *options) {
		o.store = p
	}
}

func WithSourceFactory(f SourceFactory) Option {
	return func(o *options) {
		o.openSource = f
	}
}

func WithMonitor(m *health.Monitor) Option {
	return func(o *options) {
		o.monitor = m
	}
}

func WithTelemetry(c telemetry.Collector) Option {
	return func(o *options) {
		o.telemetry = c
	}
}

func WithBroadcaster(b Broadcaster) Option {
	return func(o *options) {
		o.broadcaster = b
	}
}

func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithDetectorOptions passes extra options to every detector the tracker builds.
func WithDetectorOptions(opts ...detector.Option) Option {
	return func(o *options) {
		o.detOpts = append(o.detOpts, opts...)
	}
}

type nopBroadcaster struct{}

func (nopBroadcaster) Broadcast(string, any) {}

// Tracker coordinates a detector, a frame source and the health monitor.
type Tracker struct {
	opts           *options
	mode           config.Mode
	maxFailedReads int
	statusEvery    int
	checkInterval  time.Duration

	mu        sync.Mutex
	settings  detector.Settings
	autoStart bool
	det       detector.Detector
	cancel    context.CancelFunc
	done      chan struct{}
	frames    uint64
	last      session.Summary
	hasLast   bool
}

// New builds a tracker from cfg. Persisted settings take precedence over
// the detector section of cfg.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Tracker, error) {
	o := &options{
		log:         logger.Default(),
		now:         time.Now,
		broadcaster: nopBroadcaster{},
	}
	for _, opt := range opts {
		opt(o)
	}
	o.log = o.log.With("tracker")

	if o.openSource == nil {
		return nil, errFactory.WithMessage(errors.ErrInvalidConfig, "no frame source configured")
	}
	if o.telemetry == nil {
		o.telemetry = telemetry.Noop()
	}

	base := detector.SettingsFromConfig(cfg.Detector)
	if err := detector.Validate(base); err != nil {
		return nil, err
	}
	settings, autoStart := loadSettings(ctx, o.store, base, cfg.Detector.AutoStart, o.log)

	maxFail := cfg.Source.MaxFailedReads
	if maxFail <= 0 {
		maxFail = defaultMaxFail
	}
	statusEvery := cfg.Dashboard.StatusEvery
	if statusEvery <= 0 {
		statusEvery = config.DefaultStatusEvery
	}

	checkInterval := cfg.Health.CheckInterval
	if !cfg.Health.Enabled {
		o.monitor = nil
	}

	return &Tracker{
		opts:           o,
		mode:           cfg.Detector.Mode,
		maxFailedReads: maxFail,
		statusEvery:    statusEvery,
		checkInterval:  checkInterval,
		settings:       settings,
		autoStart:      autoStart,
	}, nil
}

// AutoStart reports whether tracking should begin at launch.
func (t *Tracker) AutoStart() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.autoStart
}

// Start opens a source, creates a detector and runs the frame loop until
// Stop is called or the source is exhausted.
func (t *Tracker) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done != nil {
		return errFactory.New(errors.ErrAlreadyRunning)
	}

	detOpts := append([]detector.Option{
		detector.WithPersistence(t.opts.store),
		detector.WithLogger(t.opts.log),
		detector.WithClock(t.opts.now),
		detector.WithBlinkHandler(t.onBlink),
	}, t.opts.detOpts...)

	det, err := detector.New(t.mode, t.settings, detOpts...)
	if err != nil {
		return err
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	src, err := t.opts.openSource(ctx)
	if err != nil {
		cancel()
		return errFactory.Wrap(errors.ErrOpenSource, err)
	}

	id := det.Start(ctx)

	t.det = det
	t.cancel = cancel
	t.done = make(chan struct{})
	t.frames = 0

	t.opts.log.Info().
		Int64("session_id", id).
		Str("mode", string(t.mode)).
		Float64("ear_threshold", t.settings.Threshold).
		Int("consecutive_frames", t.settings.ConsecutiveFrames).
		Msg("Tracking started")

	go t.run(loopCtx, src, det, t.done)

	t.opts.broadcaster.Broadcast(MessageStatus, t.statusLocked())

	return nil
}

func (t *Tracker) Pause() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done == nil {
		return errFactory.New(errors.ErrNotRunning)
	}
	t.det.Pause()
	t.opts.broadcaster.Broadcast(MessageStatus, t.statusLocked())

	return nil
}

func (t *Tracker) Resume() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done == nil {
		return errFactory.New(errors.ErrNotRunning)
	}
	t.det.Resume()
	t.opts.broadcaster.Broadcast(MessageStatus, t.statusLocked())

	return nil
}

// Stop ends the loop and returns the saved session summary.
func (t *Tracker) Stop(ctx context.Context) (session.Summary, error) {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.mu.Unlock()

	if done == nil {
		return session.Summary{}, errFactory.New(errors.ErrNotRunning)
	}

	cancel()

	select {
	case <-done:
	case <-ctx.Done():
		return session.Summary{}, errFactory.Wrap(errors.ErrTimeout, ctx.Err())
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	return t.last, nil
}

// Wait blocks until the current loop exits.
func (t *Tracker) Wait() {
	t.mu.Lock()
	done := t.done
	t.mu.Unlock()

	if done != nil {
		<-done
	}
}

func (t *Tracker) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.statusLocked()
}

func (t *Tracker) statusLocked() Status {
	st := Status{
		State:    StateStopped,
		Mode:     t.mode,
		Settings: t.settings,
		Frames:   t.frames,
	}
	if t.det == nil {
		return st
	}

	st.Stats = t.det.Stats()
	switch {
	case t.done == nil:
	case st.Stats.Paused:
		st.State = StatePaused
	default:
		st.State = StateRunning
	}

	return st
}

// LastSummary returns the summary of the most recently finished session.
func (t *Tracker) LastSummary() (session.Summary, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.last, t.hasLast
}

// CurrentInsight evaluates the live session without consulting the cooldown.
func (t *Tracker) CurrentInsight() (health.Insight, bool) {
	st := t.Status()
	if st.State == StateStopped {
		return health.Insight{}, false
	}

	return health.Analyze(st.Stats.BlinksPerMinute, st.Stats.Duration)
}

func (t *Tracker) Settings() detector.Settings {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.settings
}

// UpdateSettings validates u as a whole, applies it to the running detector
// and persists it. Nothing changes when any field is rejected.
func (t *Tracker) UpdateSettings(ctx context.Context, u SettingsUpdate) (detector.Settings, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	next := u.apply(t.settings)
	if err := detector.Validate(next); err != nil {
		return t.settings, err
	}

	if t.det != nil {
		if err := t.applyLocked(next); err != nil {
			return t.settings, err
		}
	}

	t.settings = next
	if u.AutoStart != nil {
		t.autoStart = *u.AutoStart
	}

	if t.opts.store != nil {
		for k, v := range u.values() {
			if err := t.opts.store.SetSetting(ctx, k, v); err != nil {
				t.opts.log.Warn().Err(err).Str("key", k).Msg("Failed to persist setting")
			}
		}
	}

	t.opts.broadcaster.Broadcast(MessageStatus, t.statusLocked())

	return t.settings, nil
}

func (t *Tracker) applyLocked(s detector.Settings) error {
	cur := t.det.Settings()
	if s.Threshold != cur.Threshold {
		if err := t.det.SetThreshold(s.Threshold); err != nil {
			return err
		}
	}
	if s.ConsecutiveFrames != cur.ConsecutiveFrames {
		if err := t.det.SetConsecutiveFrames(s.ConsecutiveFrames); err != nil {
			return err
		}
	}
	if s.GlassesMode != cur.GlassesMode {
		if err := t.det.SetGlassesMode(s.GlassesMode); err != nil {
			return err
		}
	}
	if s.AdaptiveThreshold != cur.AdaptiveThreshold {
		if err := t.det.SetAdaptiveThreshold(s.AdaptiveThreshold); err != nil {
			return err
		}
	}

	return nil
}

func (t *Tracker) onBlink(ev blink.Event, stats session.Stats) {
	t.opts.telemetry.ObserveBlink(ev)
	t.opts.broadcaster.Broadcast(MessageBlink, BlinkPayload{
		Timestamp:     ev.Timestamp,
		DurationMs:    ev.DurationMs(),
		EAR:           ev.EAR,
		SessionBlinks: stats.SessionBlinks,
		TotalBlinks:   stats.TotalBlinks,
	})
}
