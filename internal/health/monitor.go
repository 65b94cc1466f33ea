package health

import (
	"context"
	"time"

	"codeberg.org/mutker/blinktrack/internal/logger"
	"codeberg.org/mutker/blinktrack/internal/session"
)

// Notifier delivers insights that passed the cooldown gate.
type Notifier interface {
	Notify(ctx context.Context, insight Insight) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, insight Insight) error

func (f NotifierFunc) Notify(ctx context.Context, insight Insight) error {
	return f(ctx, insight)
}

// Monitor runs periodic health checks over session stats.
type Monitor struct {
	gate     *CooldownGate
	notifier Notifier
	warmup   time.Duration
	log      logger.Logger
}

func NewMonitor(gate *CooldownGate, notifier Notifier, warmup time.Duration, log logger.Logger) *Monitor {
	if log == nil {
		log = logger.Default()
	}

	return &Monitor{
		gate:     gate,
		notifier: notifier,
		warmup:   warmup,
		log:      log.With("health"),
	}
}

// Check analyzes stats and delivers the resulting insight if its tag is
// not cooling down. It reports whether an insight was delivered.
func (m *Monitor) Check(ctx context.Context, stats session.Stats) (Insight, bool) {
	return m.CheckAt(ctx, stats, m.gate.now())
}

// CheckAt is Check with the cooldown measured at now.
func (m *Monitor) CheckAt(ctx context.Context, stats session.Stats, now time.Time) (Insight, bool) {
	if !stats.Running || stats.Paused || stats.Duration < m.warmup {
		return Insight{}, false
	}

	insight, ok := Analyze(stats.BlinksPerMinute, stats.Duration)
	if !ok {
		return Insight{}, false
	}

	if !m.gate.ShouldFireAt(insight.Status, now) {
		m.log.Debug().Str("status", insight.Status).Msg("insight suppressed by cooldown")
		return Insight{}, false
	}

	m.log.Info().
		Str("status", insight.Status).
		Stringer("level", insight.Level).
		Float64("blinks_per_minute", stats.BlinksPerMinute).
		Dur("duration", stats.Duration).
		Msg(insight.Title)

	if m.notifier != nil {
		if err := m.notifier.Notify(ctx, insight); err != nil {
			m.log.Error().Err(err).Str("status", insight.Status).Msg("failed to deliver insight")
		}
	}

	return insight, true
}
