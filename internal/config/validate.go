package config

import (
	"os"
	"path/filepath"
	"time"

	"codeberg.org/mutker/blinktrack/internal/errors"
)

// DefaultConfig returns the configuration used when nothing overrides it
func DefaultConfig() Config {
	return Config{
		LogLevel: DefaultLogLevel,
		Detector: DetectorConfig{
			Mode:                      ModeEAR,
			EARThreshold:              DefaultEARThreshold,
			ConsecutiveFrames:         DefaultConsecutiveFrames,
			PresenceConsecutiveFrames: DefaultPresenceConsecutiveFrames,
			AdaptiveThreshold:         true,
			SmoothingWindow:           DefaultSmoothingWindow,
			BaselineWindow:            DefaultBaselineWindow,
		},
		Health: HealthConfig{
			Enabled:       true,
			CheckInterval: time.Minute,
			Cooldown:      5 * time.Minute,
			Warmup:        time.Minute,
		},
		Source: SourceConfig{
			Kind:           SourceReplay,
			Path:           "-",
			Subject:        "blinktrack.frames",
			MaxFailedReads: DefaultMaxFailedReads,
			ReadTimeout:    time.Second,
		},
		Database: DatabaseConfig{
			Path:          defaultDatabasePath(),
			BatchSize:     50,
			FlushInterval: 5 * time.Second,
			RetentionDays: 90,
		},
		Dashboard: DashboardConfig{
			Enabled:     true,
			Addr:        "localhost:5000",
			StatusEvery: DefaultStatusEvery,
		},
		Notify: NotifyConfig{
			NATSSubject: "blinktrack.alerts",
		},
	}
}

func defaultDatabasePath() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, DefaultConfigName, "blinktrack.db")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", DefaultConfigName, "blinktrack.db")
	}

	return filepath.Join(os.TempDir(), DefaultConfigName, "blinktrack.db")
}

type fieldError struct {
	Field  string
	Value  any
	Reason string
}

// ValidThreshold reports whether t is usable as a static EAR threshold
func ValidThreshold(t float64) bool {
	return t > 0 && t < 1
}

// ValidConsecutiveFrames reports whether n is an accepted closed-frame count
func ValidConsecutiveFrames(n int) bool {
	return n >= MinConsecutiveFrames && n <= MaxConsecutiveFrames
}

// Validate checks every section and returns the first violation found
func (c *Config) Validate() error {
	if !c.LogLevel.IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}

	d := c.Detector
	switch {
	case !d.Mode.IsValid():
		return errFactory.WithData(errors.ErrInvalidMode, d.Mode)
	case !ValidThreshold(d.EARThreshold):
		return errFactory.WithData(errors.ErrInvalidThreshold, d.EARThreshold)
	case !ValidConsecutiveFrames(d.ConsecutiveFrames):
		return errFactory.WithData(errors.ErrInvalidConsecutiveFrames, d.ConsecutiveFrames)
	case !ValidConsecutiveFrames(d.PresenceConsecutiveFrames):
		return errFactory.WithData(errors.ErrInvalidConsecutiveFrames, d.PresenceConsecutiveFrames)
	case d.SmoothingWindow < 1:
		return invalid("detector.smoothing_window", d.SmoothingWindow, "must be at least 1")
	case d.BaselineWindow < 1:
		return invalid("detector.baseline_window", d.BaselineWindow, "must be at least 1")
	}

	h := c.Health
	if h.Enabled && h.CheckInterval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, fieldError{"health.check_interval", h.CheckInterval, "must be positive"})
	}
	if h.Cooldown < 0 || h.Warmup < 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, fieldError{"health.cooldown", h.Cooldown, "must not be negative"})
	}

	s := c.Source
	switch {
	case !s.Kind.IsValid():
		return invalid("source.kind", s.Kind, "must be replay or nats")
	case s.Kind == SourceNATS && s.NATSURL == "":
		return errFactory.WithData(errors.ErrMissingConfig, fieldError{"source.nats_url", s.NATSURL, "required for nats source"})
	case s.MaxFailedReads < 1:
		return invalid("source.max_failed_reads", s.MaxFailedReads, "must be at least 1")
	}

	if c.Database.Path == "" {
		return errFactory.WithData(errors.ErrMissingConfig, fieldError{"database.path", "", "required"})
	}
	if c.Database.BatchSize < 1 {
		return invalid("database.batch_size", c.Database.BatchSize, "must be at least 1")
	}
	if c.Database.FlushInterval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, fieldError{"database.flush_interval", c.Database.FlushInterval, "must be positive"})
	}
	if c.Database.RetentionDays < 0 {
		return invalid("database.retention_days", c.Database.RetentionDays, "must not be negative")
	}

	if c.Dashboard.StatusEvery < 1 {
		return invalid("dashboard.status_every", c.Dashboard.StatusEvery, "must be at least 1")
	}

	return nil
}

func invalid(field string, value any, reason string) error {
	return errFactory.WithData(errors.ErrInvalidConfig, fieldError{field, value, reason})
}
