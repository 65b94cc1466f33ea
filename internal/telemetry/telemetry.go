package telemetry

import (
	"context"
	"net/http"
	"sync/atomic"

	"codeberg.org/mutker/blinktrack/internal/blink"
	"codeberg.org/mutker/blinktrack/internal/errors"
	"codeberg.org/mutker/blinktrack/internal/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var errFactory = errors.New()

type service struct {
	cfg      Config
	registry *prometheus.Registry

	framesRead   atomic.Uint64
	framesFailed atomic.Uint64

	blinks        prometheus.Counter
	blinkDuration prometheus.Histogram
	alerts        *prometheus.CounterVec

	ear            prometheus.Gauge
	baseline       prometheus.Gauge
	threshold      prometheus.Gauge
	sessionBlinks  prometheus.Gauge
	sessionRate    prometheus.Gauge
	sessionSeconds prometheus.Gauge
	tracking       prometheus.Gauge
	paused         prometheus.Gauge
}

// No-op implementation
type noopCollector struct{}

// Noop returns a collector that records nothing.
func Noop() Collector {
	return &noopCollector{}
}

func NewService(cfg Config) (Collector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if !cfg.Enabled {
		logger.Debug().Msg("Telemetry disabled, using no-op collector")
		return Noop(), nil
	}

	s := &service{
		cfg:      cfg,
		registry: prometheus.NewRegistry(),
	}
	s.register()

	logger.Debug().
		Str("namespace", cfg.Namespace).
		Msg("Telemetry service initialized successfully")

	return s, nil
}

func (s *service) register() {
	ns := s.cfg.Namespace

	s.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "frames_read_total",
			Help:      "Total frames read from the frame source",
		},
		func() float64 { return float64(s.framesRead.Load()) },
	))

	s.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "frames_failed_total",
			Help:      "Total failed frame reads",
		},
		func() float64 { return float64(s.framesFailed.Load()) },
	))

	s.blinks = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "blinks_total",
		Help:      "Total accepted blinks",
	})

	s.blinkDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: ns,
		Name:      "blink_duration_seconds",
		Help:      "Duration of accepted blinks with a known closure time",
		Buckets:   []float64{0.03, 0.05, 0.1, 0.15, 0.2, 0.3, 0.4, 0.5},
	})

	s.alerts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "health_alerts_total",
		Help:      "Health insights delivered, by status",
	}, []string{"status"})

	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: ns, Name: name, Help: help})
	}
	s.ear = gauge("ear_current", "Most recent smoothed eye aspect ratio")
	s.baseline = gauge("ear_baseline", "Rolling open-eye EAR baseline")
	s.threshold = gauge("ear_threshold", "Effective blink threshold")
	s.sessionBlinks = gauge("session_blinks", "Blinks in the current session")
	s.sessionRate = gauge("session_blinks_per_minute", "Blink rate of the current session")
	s.sessionSeconds = gauge("session_duration_seconds", "Duration of the current session")
	s.tracking = gauge("tracking_active", "1 while a session is running")
	s.paused = gauge("tracking_paused", "1 while the running session is paused")

	s.registry.MustRegister(
		s.blinks, s.blinkDuration, s.alerts,
		s.ear, s.baseline, s.threshold,
		s.sessionBlinks, s.sessionRate, s.sessionSeconds,
		s.tracking, s.paused,
	)
}

func (s *service) Record(ctx context.Context, snapshot *Snapshot) error {
	if snapshot == nil {
		return errFactory.New(ErrInvalidMetrics)
	}

	select {
	case <-ctx.Done():
		return errFactory.Wrap(ErrOperationTimeout, ctx.Err())
	default:
	}

	s.ear.Set(snapshot.EAR.Current)
	s.baseline.Set(snapshot.EAR.Baseline)
	s.threshold.Set(snapshot.EAR.Threshold)
	s.sessionBlinks.Set(float64(snapshot.Session.Blinks))
	s.sessionRate.Set(snapshot.Session.BlinksPerMinute)
	s.sessionSeconds.Set(snapshot.Session.Duration.Seconds())
	s.tracking.Set(boolToFloat(snapshot.Session.Running))
	s.paused.Set(boolToFloat(snapshot.Session.Paused))

	return nil
}

func (s *service) ObserveFrame(ok bool) {
	s.framesRead.Add(1)
	if !ok {
		s.framesFailed.Add(1)
	}
}

func (s *service) ObserveBlink(ev blink.Event) {
	s.blinks.Inc()
	if ev.DurationKnown {
		s.blinkDuration.Observe(ev.Duration.Seconds())
	}
}

func (s *service) ObserveAlert(status string) {
	s.alerts.WithLabelValues(status).Inc()
}

func (s *service) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

func (s *service) Close() error {
	return nil
}

func (n *noopCollector) Record(_ context.Context, _ *Snapshot) error {
	return nil
}

func (n *noopCollector) ObserveFrame(_ bool) {}

func (n *noopCollector) ObserveBlink(_ blink.Event) {}

func (n *noopCollector) ObserveAlert(_ string) {}

func (n *noopCollector) Handler() http.Handler {
	return http.NotFoundHandler()
}

func (n *noopCollector) Close() error {
	return nil
}
